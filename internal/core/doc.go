// Package core holds the hub's run state.
//
// Components that must follow the hub's lifecycle register start and stop
// listeners. Start runs the start listeners in registration order; Stop runs
// the stop listeners in reverse order. Request handling consults IsRunning
// to refuse work while the hub is not up.
package core

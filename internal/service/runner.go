package service

import "context"

// RunFunc is the service body. It must return once ctx is done.
type RunFunc func(ctx context.Context) error

// Run executes fn until it returns or the process is asked to stop. Under
// the Windows service control manager stop requests come from the SCM;
// elsewhere from SIGINT and SIGTERM.
func Run(name string, fn RunFunc) error {
	return run(name, fn)
}

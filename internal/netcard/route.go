package netcard

import (
	"errors"
	"fmt"

	"github.com/prometheus/procfs"

	"netcard-affinity/internal/sysfs"
)

var ErrNoDefaultRoute = errors.New("no default route")

// DefaultInterface returns the egress interface of the first route in
// <procRoot>/net/route whose destination is 0.0.0.0.
func DefaultInterface(procRoot string) (string, error) {
	fs, err := procfs.NewFS(procRoot)
	if err != nil {
		return "", fmt.Errorf("%w: open procfs %s: %w", sysfs.ErrFileAccess, procRoot, err)
	}
	routes, err := fs.NetRoute()
	if err != nil {
		return "", fmt.Errorf("%w: read route table: %w", sysfs.ErrFileAccess, err)
	}
	for _, route := range routes {
		if route.Destination == 0 {
			return route.Iface, nil
		}
	}
	return "", ErrNoDefaultRoute
}

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/foldsense/devstate-go/pkg/discovery"
)

// runDiscover lists daemons found within discovery.BrowseTimeout.
func runDiscover(ctx context.Context, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, discovery.BrowseTimeout)
	defer cancel()

	browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{})
	services, err := browser.Browse(ctx)
	if err != nil {
		return err
	}

	found := 0
	for svc := range services {
		found++
		printService(out, svc)
	}
	if found == 0 {
		fmt.Fprintln(out, "No devstate daemons found")
	}
	return nil
}

func printService(out io.Writer, svc *discovery.Service) {
	committed := "-"
	if svc.Committed >= 0 {
		committed = fmt.Sprintf("%d", svc.Committed)
		if svc.CommittedName != "" {
			committed = fmt.Sprintf("%s(%d)", svc.CommittedName, svc.Committed)
		}
	}
	ids := make([]string, len(svc.Supported))
	for i, id := range svc.Supported {
		ids[i] = fmt.Sprintf("%d", id)
	}
	fmt.Fprintf(out, "%s  %s:%d  [%s]\n", svc.InstanceName, svc.Host, svc.Port, strings.Join(svc.Addresses, ", "))
	fmt.Fprintf(out, "  committed: %s  supported: %s\n", committed, strings.Join(ids, ","))
}

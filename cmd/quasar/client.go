package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/oriys/quasar/internal/api"
	"github.com/oriys/quasar/internal/observability"
	"github.com/spf13/cobra"
)

// client talks to a running daemon.
type client struct {
	base string
	http *http.Client
}

func newClient() *client {
	return &client{
		base: strings.TrimRight(serverAddr, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(api.RequestIDHeader, uuid.NewString())
	observability.InjectHTTP(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("%s %s: %s (%d)", method, path, e.Error, resp.StatusCode)
		}
		return nil, fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	return data, nil
}

func keyPath(key string) string {
	return "/v1/cache/" + url.PathEscape(key)
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a key, resolving it on a miss",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := newClient().do(cmd.Context(), http.MethodGet, keyPath(args[0]), nil)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}
}

func putCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "put <key> [value]",
		Short: "Write a value to the source and drop cached copies",
		Long:  "Write a value to the upstream source. Without a value argument the value is read from stdin.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var body io.Reader = cmd.InOrStdin()
			if len(args) == 2 {
				body = strings.NewReader(args[1])
			}
			path := "/v1/source/" + url.PathEscape(args[0])
			if ttl > 0 {
				path += "?ttl=" + url.QueryEscape(ttl.String())
			}
			_, err := newClient().do(cmd.Context(), http.MethodPut, path, body)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Upstream retention (0 keeps the source default)")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key from the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := newClient().do(cmd.Context(), http.MethodDelete, keyPath(args[0]), nil)
			return err
		},
	}
}

func clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every entry from the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := newClient().do(cmd.Context(), http.MethodDelete, "/v1/cache", nil)
			return err
		},
	}
}

func pruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Run capacity and TTL pruning now",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := newClient().do(cmd.Context(), http.MethodPost, "/v1/cache/prune", nil)
			if err != nil {
				return err
			}
			return printStats(body)
		},
	}
}

func statsCmd() *cobra.Command {
	var showKeys bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/v1/stats"
			if showKeys {
				path += "?keys=true"
			}
			body, err := newClient().do(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return printStats(body)
		},
	}
	cmd.Flags().BoolVar(&showKeys, "keys", false, "List stored keys, oldest first")
	return cmd
}

func printStats(body []byte) error {
	var s api.StatsResponse
	if err := json.Unmarshal(body, &s); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SIZE\t%d / %d\n", s.Size, s.Capacity)
	fmt.Fprintf(w, "PRUNE\t%d\n", s.Prune)
	if s.TTLMs > 0 {
		fmt.Fprintf(w, "TTL\t%s\n", time.Duration(s.TTLMs)*time.Millisecond)
	}
	fmt.Fprintf(w, "HITS\t%d\n", s.Hits)
	fmt.Fprintf(w, "MISSES\t%d\n", s.Misses)
	fmt.Fprintf(w, "RESOLVE ERRORS\t%d\n", s.ResolveErrors)
	fmt.Fprintf(w, "CAPACITY EVICTIONS\t%d\n", s.CapacityEvictions)
	fmt.Fprintf(w, "EXPIRATIONS\t%d\n", s.Expirations)
	if err := w.Flush(); err != nil {
		return err
	}
	for _, k := range s.Keys {
		fmt.Println(k)
	}
	return nil
}

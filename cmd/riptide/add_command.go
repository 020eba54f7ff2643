package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"riptide/internal/ipc"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var listFile string

	cmd := &cobra.Command{
		Use:   "add [url...]",
		Short: "Submit URLs to the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls, err := collectURLs(args, listFile)
			if err != nil {
				return err
			}
			if len(urls) == 0 {
				return fmt.Errorf("no URLs given")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Submit(urls)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				rejected := 0
				for _, result := range resp.Results {
					if result.Accepted {
						fmt.Fprintf(out, "Queued %s\n", result.URL)
						continue
					}
					rejected++
					fmt.Fprintf(out, "Rejected %s: %s\n", result.URL, result.Error)
				}
				if rejected == len(resp.Results) {
					return fmt.Errorf("no URLs were accepted")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&listFile, "file", "f", "", "Read URLs from a file, one per line")
	return cmd
}

// collectURLs merges positional URLs with a list file, skipping blanks and
// lines starting with '#'.
func collectURLs(args []string, listFile string) ([]string, error) {
	var urls []string
	for _, arg := range args {
		if url := strings.TrimSpace(arg); url != "" {
			urls = append(urls, url)
		}
	}
	listFile = strings.TrimSpace(listFile)
	if listFile == "" {
		return urls, nil
	}
	f, err := os.Open(listFile)
	if err != nil {
		return nil, fmt.Errorf("open url list: %w", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url list: %w", err)
	}
	return urls, nil
}

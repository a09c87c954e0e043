package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/icloud-go/internal/icloud"
)

// maxConcurrentFetches bounds the recursive walk. The session engine
// serializes protocol calls internally; this only caps the queued work.
const maxConcurrentFetches = 4

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [drivewsid]",
		Short: "List iCloud Drive contents",
		Long: `List the drive root, or the node with the given drivewsid.

With --recursive, subfolders are walked and their contents listed indented
under their parent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLs,
	}

	cmd.Flags().BoolP("recursive", "r", false, "recurse into subfolders")

	return cmd
}

func runLs(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := newSessionClient(logger)
	if err != nil {
		return err
	}

	state, err := client.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("no usable session (run `icloud-go login`): %w", err)
	}

	if state != icloud.Authenticated {
		return fmt.Errorf("session is %s — run `icloud-go login`", state)
	}

	drive, err := client.Drive()
	if err != nil {
		return err
	}

	var node icloud.Node
	if len(args) == 1 {
		node, err = drive.GetNode(ctx, args[0])
	} else {
		node, err = drive.Root(ctx)
	}

	if err != nil {
		return err
	}

	if err := saveSession(client); err != nil {
		return err
	}

	recursive, _ := cmd.Flags().GetBool("recursive")

	rows := [][]string{}

	switch n := node.(type) {
	case *icloud.Folder:
		if err := collectRows(ctx, drive, n, "", recursive, &rows); err != nil {
			return err
		}
	case *icloud.File:
		rows = append(rows, fileRow(n, ""))
	}

	// ls-style: header only on interactive terminals, so piped output
	// stays machine-friendly.
	if isatty.IsTerminal(os.Stdout.Fd()) {
		printTable(os.Stdout, []string{"NAME", "KIND", "SIZE", "MODIFIED"}, rows)
	} else {
		printTable(os.Stdout, nil, rows)
	}

	return nil
}

// collectRows appends one row per child of folder, recursing into
// subfolders when requested. Subfolder listings are fetched through an
// errgroup so the walk overlaps scheduling without unbounded fan-out.
func collectRows(ctx context.Context, drive *icloud.DriveService, folder *icloud.Folder, prefix string, recursive bool, rows *[][]string) error {
	type subfetch struct {
		idx    int
		folder *icloud.Folder
	}

	var subfolders []subfetch

	for child := range folder.Children() {
		switch n := child.(type) {
		case *icloud.Folder:
			*rows = append(*rows, []string{prefix + n.Name, "folder", "-", formatTime(n.CreatedAt)})

			if recursive {
				subfolders = append(subfolders, subfetch{idx: len(*rows) - 1, folder: n})
			}
		case *icloud.File:
			*rows = append(*rows, fileRow(n, prefix))
		}
	}

	if !recursive || len(subfolders) == 0 {
		return nil
	}

	// A folder fetched as a child carries no listing of its own; refetch
	// each subfolder by id to get one level deeper.
	fetched := make([]*icloud.Folder, len(subfolders))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for i, sub := range subfolders {
		g.Go(func() error {
			node, err := drive.GetNode(gctx, sub.folder.ID)
			if err != nil {
				return err
			}

			if f, ok := node.(*icloud.Folder); ok {
				fetched[i] = f
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	// Recurse in listing order so output stays deterministic. Rows for a
	// subtree are collected into a scratch slice and spliced in after the
	// parent row.
	var expanded [][]string

	cursor := 0

	for i, sub := range subfolders {
		// Copy rows up to and including the parent folder row.
		expanded = append(expanded, (*rows)[cursor:sub.idx+1]...)
		cursor = sub.idx + 1

		if fetched[i] == nil {
			continue
		}

		var childRows [][]string
		if err := collectRows(ctx, drive, fetched[i], prefix+"  ", true, &childRows); err != nil {
			return err
		}

		expanded = append(expanded, childRows...)
	}

	expanded = append(expanded, (*rows)[cursor:]...)
	*rows = expanded

	return nil
}

func fileRow(f *icloud.File, prefix string) []string {
	return []string{prefix + f.Name, "file", formatSize(f.Size), formatTime(f.ModifiedAt)}
}

package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/koltyakov/wsedge/internal/config"
	"github.com/koltyakov/wsedge/internal/store/sqlite"
)

const maxImportBytes = 1 << 20

func runAlias(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: wsedge alias <list|set|delete|import> [flags]")
		return 2
	}
	switch args[0] {
	case "list":
		return runAliasList(ctx, args[1:])
	case "set":
		return runAliasSet(ctx, args[1:])
	case "delete":
		return runAliasDelete(ctx, args[1:])
	case "import":
		return runAliasImport(ctx, args[1:])
	default:
		fmt.Fprintln(os.Stderr, "unknown alias command:", args[0])
		return 2
	}
}

func runAliasList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("alias-list", flag.ContinueOnError)
	var dbPath string
	fs.StringVar(&dbPath, "db", config.DefaultDBPath(), "sqlite db path")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	store, code := openSQLiteStoreOrExit(dbPath)
	if code != 0 {
		return code
	}
	defer func() { _ = store.Close() }()

	aliases, err := store.ListAliases(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list aliases:", err)
		return 1
	}
	for _, a := range aliases {
		fmt.Printf("%s\t%s\tupdated=%s\n", a.Code, strings.Join(a.Candidates, ","), a.UpdatedAt.UTC().Format(time.RFC3339))
	}
	return 0
}

// runAliasSet handles `alias set [--db PATH] CODE HOST:PORT [HOST:PORT...]`.
func runAliasSet(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("alias-set", flag.ContinueOnError)
	var dbPath string
	fs.StringVar(&dbPath, "db", config.DefaultDBPath(), "sqlite db path")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) < 2 {
		fmt.Fprintln(os.Stderr, "usage: wsedge alias set [--db PATH] CODE HOST:PORT [HOST:PORT...]")
		return 2
	}
	code, candidates := rest[0], rest[1:]
	if err := validateAliasCode(code); err != nil {
		fmt.Fprintln(os.Stderr, "alias set error:", err)
		return 2
	}

	store, exit := openSQLiteStoreOrExit(dbPath)
	if exit != 0 {
		return exit
	}
	defer func() { _ = store.Close() }()

	if err := store.UpsertAlias(ctx, code, candidates); err != nil {
		fmt.Fprintln(os.Stderr, "set alias:", err)
		return 1
	}
	fmt.Println("alias:", code, "->", strings.Join(candidates, ","))
	return 0
}

func runAliasDelete(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("alias-delete", flag.ContinueOnError)
	var dbPath string
	fs.StringVar(&dbPath, "db", config.DefaultDBPath(), "sqlite db path")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: wsedge alias delete [--db PATH] CODE")
		return 2
	}
	code := fs.Arg(0)

	store, exit := openSQLiteStoreOrExit(dbPath)
	if exit != 0 {
		return exit
	}
	defer func() { _ = store.Close() }()

	if err := store.DeleteAlias(ctx, code); err != nil {
		fmt.Fprintln(os.Stderr, "delete alias:", err)
		return 1
	}
	fmt.Println("deleted:", code)
	return 0
}

// runAliasImport loads a directory document (alias -> [host:port]) from a
// file, stdin ("-") or an http(s) URL into the alias table.
func runAliasImport(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("alias-import", flag.ContinueOnError)
	var dbPath string
	fs.StringVar(&dbPath, "db", config.DefaultDBPath(), "sqlite db path")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: wsedge alias import [--db PATH] FILE|-|URL")
		return 2
	}

	doc, err := readAliasDocument(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "alias import error:", err)
		return 1
	}
	for code := range doc {
		if err := validateAliasCode(code); err != nil {
			fmt.Fprintln(os.Stderr, "alias import error:", err)
			return 1
		}
	}

	store, exit := openSQLiteStoreOrExit(dbPath)
	if exit != 0 {
		return exit
	}
	defer func() { _ = store.Close() }()

	n, err := store.ImportAliases(ctx, doc)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import aliases:", err)
		return 1
	}
	fmt.Println("imported:", n)
	return 0
}

func readAliasDocument(ctx context.Context, src string) (map[string][]string, error) {
	var r io.Reader
	switch {
	case src == "-":
		r = os.Stdin
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		resp, err := (&http.Client{Timeout: 30 * time.Second}).Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch %s: status %d", src, resp.StatusCode)
		}
		r = resp.Body
	default:
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var doc map[string][]string
	if err := json.NewDecoder(io.LimitReader(r, maxImportBytes)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode alias document: %w", err)
	}
	return doc, nil
}

// validateAliasCode enforces the two-character form the resolver routes to
// the directory.
func validateAliasCode(code string) error {
	if len(code) != 2 {
		return fmt.Errorf("alias %q must be exactly 2 characters", code)
	}
	return nil
}

func openSQLiteStoreOrExit(dbPath string) (*sqlite.Store, int) {
	store, err := sqlite.Open(dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "db error:", err)
		return nil, 1
	}
	return store, 0
}

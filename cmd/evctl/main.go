package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"event-scheduler/internal/db"
	"event-scheduler/pkg/event"
	"event-scheduler/pkg/permission"
	"event-scheduler/pkg/user"
	"event-scheduler/pkg/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		fatal("connect: %v", err)
	}
	defer pool.Close()

	users := user.NewPgStore(pool)
	events := event.NewPgStore(pool)
	grants := permission.NewPgStore(pool)
	versions := version.NewPgStore(pool)

	switch os.Args[1] {
	case "user":
		handleUser(ctx, users, os.Args[2:])
	case "event":
		handleEvent(ctx, events, os.Args[2:])
	case "permission":
		handlePermission(ctx, grants, os.Args[2:])
	case "version":
		handleVersion(ctx, versions, os.Args[2:])
	case "status":
		handleStatus(ctx, users, events, versions)
	case "init":
		handleInit(ctx, users, events, grants, versions)
	default:
		usage()
		os.Exit(1)
	}
}

func handleUser(ctx context.Context, store user.Store, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: evctl user <register|list|get>")
		os.Exit(1)
	}

	switch args[0] {
	case "register":
		flags := parseFlags(args[1:])
		username := flags["username"]
		email := flags["email"]
		if username == "" || email == "" {
			fatal("--username and --email are required")
		}
		u, err := store.Create(ctx, username, email)
		if err != nil {
			fatal("register user: %v", err)
		}
		printJSON(u)

	case "list":
		users, err := store.List(ctx)
		if err != nil {
			fatal("list users: %v", err)
		}
		printJSON(users)

	case "get":
		if len(args) < 2 {
			fatal("Usage: evctl user get <id|username>")
		}
		if id, err := strconv.ParseInt(args[1], 10, 64); err == nil {
			u, err := store.Get(ctx, id)
			if err != nil {
				fatal("get user: %v", err)
			}
			printJSON(u)
			return
		}
		u, err := store.ByUsername(ctx, args[1])
		if err != nil {
			fatal("get user: %v", err)
		}
		printJSON(u)

	default:
		fatal("unknown user command: %s", args[0])
	}
}

func handleEvent(ctx context.Context, store event.Store, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: evctl event <list|get|conflicts> [--format=short for list]")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		flags := parseFlags(args[1:])
		viewer := int64Flag(flags, "as", 0)
		if viewer == 0 {
			fatal("--as=<user id> is required")
		}
		f := event.Filter{
			ViewerID: viewer,
			Page:     intFlag(flags, "page", 1),
			PerPage:  intFlag(flags, "limit", 20),
		}
		if v := flags["owner"]; v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				fatal("parse --owner: %v", err)
			}
			f.OwnerID = &id
		}
		if v := flags["start"]; v != "" {
			t, err := event.ParseTime(v)
			if err != nil {
				fatal("parse --start: %v", err)
			}
			f.Start = &t
		}
		if v := flags["end"]; v != "" {
			t, err := event.ParseTime(v)
			if err != nil {
				fatal("parse --end: %v", err)
			}
			f.End = &t
		}
		events, total, err := store.List(ctx, f)
		if err != nil {
			fatal("list events: %v", err)
		}
		if flags["format"] == "short" {
			printShortEvents(events)
		} else {
			printJSON(map[string]any{"total": total, "events": events})
		}

	case "get":
		if len(args) < 2 {
			fatal("Usage: evctl event get <id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatal("parse id: %v", err)
		}
		e, err := store.Get(ctx, id)
		if err != nil {
			fatal("get event: %v", err)
		}
		printJSON(e)

	case "conflicts":
		flags := parseFlags(args[1:])
		owner := int64Flag(flags, "owner", 0)
		if owner == 0 || flags["start"] == "" || flags["end"] == "" {
			fatal("--owner, --start and --end are required")
		}
		start, err := event.ParseTime(flags["start"])
		if err != nil {
			fatal("parse --start: %v", err)
		}
		end, err := event.ParseTime(flags["end"])
		if err != nil {
			fatal("parse --end: %v", err)
		}
		events, err := store.Conflicts(ctx, owner, start, end, 0)
		if err != nil {
			fatal("conflicts: %v", err)
		}
		printJSON(events)

	default:
		fatal("unknown event command: %s", args[0])
	}
}

func handlePermission(ctx context.Context, store permission.Store, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: evctl permission <list>")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		if len(args) < 2 {
			fatal("Usage: evctl permission list <event id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatal("parse event id: %v", err)
		}
		grants, err := store.ByEvent(ctx, id)
		if err != nil {
			fatal("list permissions: %v", err)
		}
		printJSON(grants)

	default:
		fatal("unknown permission command: %s", args[0])
	}
}

func handleVersion(ctx context.Context, store version.Store, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: evctl version <list|get>")
		os.Exit(1)
	}

	switch args[0] {
	case "list":
		if len(args) < 2 {
			fatal("Usage: evctl version list <event id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatal("parse event id: %v", err)
		}
		snaps, err := store.List(ctx, id, version.NewestFirst)
		if err != nil {
			fatal("list versions: %v", err)
		}
		printJSON(snaps)

	case "get":
		if len(args) < 3 {
			fatal("Usage: evctl version get <event id> <version>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatal("parse event id: %v", err)
		}
		n, err := strconv.Atoi(args[2])
		if err != nil {
			fatal("parse version: %v", err)
		}
		snap, err := store.Get(ctx, id, n)
		if err != nil {
			fatal("get version: %v", err)
		}
		printJSON(snap)

	default:
		fatal("unknown version command: %s", args[0])
	}
}

func handleStatus(ctx context.Context, users user.Store, events event.Store, versions version.Store) {
	userCount, _ := users.Count(ctx)
	eventCount, _ := events.Count(ctx)
	versionCount, _ := versions.Count(ctx)

	status := map[string]any{
		"users":    userCount,
		"events":   eventCount,
		"versions": versionCount,
	}
	printJSON(status)
}

func handleInit(ctx context.Context, users user.Store, events event.Store, grants permission.Store, versions version.Store) {
	if err := users.EnsureTable(ctx); err != nil {
		fatal("ensure users table: %v", err)
	}
	if err := events.EnsureTable(ctx); err != nil {
		fatal("ensure events table: %v", err)
	}
	if err := grants.EnsureTable(ctx); err != nil {
		fatal("ensure permissions table: %v", err)
	}
	if err := versions.EnsureTable(ctx); err != nil {
		fatal("ensure versions table: %v", err)
	}
	fmt.Println(`{"status":"ok","message":"all tables initialized"}`)
}

// parseFlags parses --key=value and --flag style args into a map.
func parseFlags(args []string) map[string]string {
	flags := make(map[string]string)
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if idx := strings.Index(arg, "="); idx >= 0 {
			flags[arg[:idx]] = arg[idx+1:]
		} else {
			flags[arg] = ""
		}
	}
	return flags
}

func intFlag(flags map[string]string, key string, defaultVal int) int {
	if v, ok := flags[key]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func int64Flag(flags map[string]string, key string, defaultVal int64) int64 {
	if v, ok := flags[key]; ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode JSON: %v", err)
	}
}

func truncStr(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func printShortEvents(events []event.Event) {
	for _, e := range events {
		fmt.Printf("%-6d  %-16s  %-16s  %s\n",
			e.ID,
			e.StartTime.Format("2006-01-02 15:04"),
			e.EndTime.Format("2006-01-02 15:04"),
			truncStr(e.Title, 60))
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "evctl: "+format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: evctl <command>

Commands:
  user        User operations (register, list, get)
  event       Event operations (list, get, conflicts)
  permission  Permission operations (list)
  version     Version operations (list, get)
  status      Show system summary
  init        Initialize database tables`)
}

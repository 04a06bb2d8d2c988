package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/chzyer/readline"

	"github.com/happydigua/recch/core/value"
	"github.com/happydigua/recch/internal/sqlexec"
)

// ReplCmd runs an interactive SQL shell against one database.
type ReplCmd struct {
	DB string `arg:"" help:"SQLite database file" type:"path"`
}

func (c *ReplCmd) Run() error {
	exec, err := openExecutor(c.DB)
	if err != nil {
		return err
	}
	defer exec.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "recch> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Printf("recch %s, connected to %s\n", version, c.DB)
	fmt.Println("end statements with ';' or run dot commands (.tables, .schema TABLE, .quit)")

	ctx := context.Background()
	var buf strings.Builder
	for {
		prompt := "recch> "
		if buf.Len() > 0 {
			prompt = "   ... "
		}
		rl.SetPrompt(prompt)

		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			buf.Reset()
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if buf.Len() == 0 && strings.HasPrefix(trimmed, ".") {
			if done := c.dotCommand(ctx, exec, trimmed); done {
				return nil
			}
			continue
		}
		if trimmed == "" {
			continue
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		if !strings.HasSuffix(trimmed, ";") {
			continue
		}

		stmt := strings.TrimSpace(buf.String())
		buf.Reset()
		rows, err := exec.Query(ctx, stmt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if err := printRows(rows, false); err != nil {
			return err
		}
	}
}

// dotCommand handles shell meta commands. It reports true on .quit.
func (c *ReplCmd) dotCommand(ctx context.Context, exec *sqlexec.Executor, cmd string) bool {
	fields := strings.Fields(cmd)
	switch fields[0] {
	case ".quit", ".exit":
		return true

	case ".tables":
		rows, err := exec.Query(ctx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return false
		}
		for _, row := range rows {
			fmt.Println(row["name"].AsString())
		}

	case ".schema":
		if len(fields) < 2 {
			fmt.Fprintln(os.Stderr, "usage: .schema TABLE")
			return false
		}
		cols, err := exec.Columns(ctx, fields[1], "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return false
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, col := range cols {
			pk := ""
			if col.IsPK {
				pk = "PRIMARY KEY"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", col.Name, col.TypeName, pk)
		}
		w.Flush()

	default:
		fmt.Fprintf(os.Stderr, "unknown command %s\n", fields[0])
	}
	return false
}

// printRows renders a result set as a table or JSON Lines.
func printRows(rows []value.Row, asJSON bool) error {
	if len(rows) == 0 {
		fmt.Println("(no rows)")
		return nil
	}

	// Column order is not carried by the row map; sort names for stable
	// output.
	names := make([]string, 0, len(rows[0]))
	for name := range rows[0] {
		names = append(names, name)
	}
	sort.Strings(names)

	if asJSON {
		for _, row := range rows {
			doc := make(map[string]any, len(names))
			for _, name := range names {
				doc[name] = row[name].ToAny()
			}
			if err := printJSON(doc); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t")))
	for _, row := range rows {
		cells := make([]string, len(names))
		for i, name := range names {
			cells[i] = row[name].String()
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func historyFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir + "/recch/history"
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/guileen/memquery/algebra"
	"github.com/guileen/memquery/exec"
	"github.com/guileen/memquery/expr"
	"github.com/guileen/memquery/plan"
	"github.com/guileen/memquery/source/postgres"
	"github.com/guileen/memquery/source/sqldb"
)

// queryFlags are shared by query and explain.
type queryFlags struct {
	planFile string
	data     []string
	sqlite   string
	postgres string
	loads    []string
	format   string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.planFile, "plan", "p", "", "plan document (- for stdin)")
	cmd.Flags().StringArrayVarP(&f.data, "data", "d", nil, "JSON relation document; repeatable")
	cmd.Flags().StringVar(&f.sqlite, "sqlite", "", "SQLite database for --load")
	cmd.Flags().StringVar(&f.postgres, "postgres", "", "PostgreSQL connection string for --load")
	cmd.Flags().StringArrayVar(&f.loads, "load", nil, "name=SELECT ... run against --sqlite or --postgres; repeatable")
	_ = cmd.MarkFlagRequired("plan")
}

func newQueryCmd(a *app) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a plan and print its result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.query(cmd.Context(), f, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	f.register(cmd)
	cmd.Flags().StringVarP(&f.format, "format", "o", "table", "output format: table or json")
	return cmd
}

func newExplainCmd(a *app) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the algebra tree of a plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, _, err := a.prepare(cmd.Context(), f, cmd.InOrStdin())
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), algebra.Explain(tree))
			return err
		},
	}
	f.register(cmd)
	return cmd
}

func (a *app) query(ctx context.Context, f *queryFlags, stdin io.Reader, out io.Writer) error {
	if f.format != "table" && f.format != "json" {
		return fmt.Errorf("unknown format %q", f.format)
	}
	tree, cat, err := a.prepare(ctx, f, stdin)
	if err != nil {
		return err
	}
	opts := exec.Options{HashJoin: a.cfg.Exec.HashJoin, MaxRows: a.cfg.Exec.MaxRows}
	rel, err := exec.NewExecutor(cat, opts).Execute(ctx, tree)
	if err != nil {
		return err
	}
	if f.format == "json" {
		return printJSON(out, rel)
	}
	return printTable(out, rel)
}

// prepare loads every input relation into a catalog and builds the plan.
func (a *app) prepare(ctx context.Context, f *queryFlags, stdin io.Reader) (algebra.RelationalExpression, *exec.MemoryCatalog, error) {
	cat := exec.NewMemoryCatalog()
	for _, path := range f.data {
		rel, err := readRelation(path)
		if err != nil {
			return nil, nil, err
		}
		cat.Register(rel)
	}
	if err := loadQueries(ctx, f, cat); err != nil {
		return nil, nil, err
	}

	data, err := readInput(f.planFile, stdin)
	if err != nil {
		return nil, nil, err
	}
	node, err := plan.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	compiler, err := expr.NewCompiler(a.cfg.Expr.CacheSize)
	if err != nil {
		return nil, nil, err
	}
	tree, err := (&plan.Builder{Schemas: cat, Compiler: compiler}).Build(node)
	if err != nil {
		return nil, nil, err
	}
	return tree, cat, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func readRelation(path string) (*exec.Relation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := exec.DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rel, err := exec.FromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rel, nil
}

// loadQueries runs each --load against the configured database.
func loadQueries(ctx context.Context, f *queryFlags, cat *exec.MemoryCatalog) error {
	if len(f.loads) == 0 {
		return nil
	}
	if (f.sqlite == "") == (f.postgres == "") {
		return fmt.Errorf("--load needs exactly one of --sqlite or --postgres")
	}

	var load func(name, query string) (*exec.Relation, error)
	if f.sqlite != "" {
		db, err := sqldb.OpenSQLite(f.sqlite)
		if err != nil {
			return err
		}
		defer db.Close()
		load = func(name, query string) (*exec.Relation, error) { return sqldb.Load(ctx, db, name, query) }
	} else {
		pool, err := postgres.Connect(ctx, f.postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		load = func(name, query string) (*exec.Relation, error) { return postgres.Load(ctx, pool, name, query) }
	}

	for _, spec := range f.loads {
		name, query, ok := strings.Cut(spec, "=")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(query) == "" {
			return fmt.Errorf("--load %q: want name=query", spec)
		}
		rel, err := load(strings.TrimSpace(name), query)
		if err != nil {
			return err
		}
		cat.Register(rel)
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"strconv"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/bjaus/dtoapi/dto"
	"github.com/bjaus/dtoapi/dto/dtogen"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sample",
		Short:        "Books API built on dtoapi",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), specCmd(), inspectCmd(), genCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var store bookStore = newMemStore(seedBooks()...)
			if cfg.Database.URL != "" {
				pg, err := newPGStore(ctx, cfg.Database)
				if err != nil {
					return fmt.Errorf("database: %w", err)
				}
				defer pg.Close()
				store = pg
				logger.Info("using postgres store")
			}

			r := newRouter(store, logger, cfg.Server)
			logger.Info("starting server", "addr", cfg.Server.Addr())
			if err := r.ListenAndServe(ctx, cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", "error", err)
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
}

func specCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Print the OpenAPI document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := newRouter(newMemStore(), discardLogger(), ServerConfig{})
			return writeTo(cmd.OutOrStdout(), out, func(w io.Writer) error {
				switch format {
				case "json":
					return r.WriteSpec(w)
				case "yaml":
					return r.WriteSpecYAML(w)
				default:
					return fmt.Errorf("unknown format %q", format)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format (json or yaml)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List the transfer fields of every book DTO",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gen := dtogen.New(newRouter(newMemStore(), discardLogger(), ServerConfig{}).DTORegistry(), "books")
			backends, err := gen.Backends(cmd.Context(), bookBackends())
			if err != nil {
				return err
			}
			return inspect(cmd.OutOrStdout(), backends)
		},
	}
}

func genCmd() *cobra.Command {
	var pkg, out string
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate Go source for the book transfer models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := newRouter(newMemStore(), discardLogger(), ServerConfig{}).DTORegistry()
			gen := dtogen.New(reg, pkg)
			return writeTo(cmd.OutOrStdout(), out, func(w io.Writer) error {
				return gen.Render(cmd.Context(), w, bookBackends())
			})
		},
	}
	cmd.Flags().StringVarP(&pkg, "package", "p", "books", "package name of the generated file")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write to file instead of stdout")
	return cmd
}

// bookBackends mirrors the DTOs the router declares for books.
func bookBackends() []dto.BackendParams {
	book := reflect.TypeFor[Book]()
	return []dto.BackendParams{
		{HandlerID: "post_v1_books", ModelType: book, IsDataField: true},
		{HandlerID: "post_v1_books", ModelType: book},
		{HandlerID: "patch_v1_books_id", ModelType: book, IsDataField: true, Config: dto.Config{Partial: true}},
		{
			HandlerID:            "get_v1_books",
			ModelType:            book,
			FieldDefinition:      dto.Of[BookPage](),
			WrapperAttributeName: "Items",
		},
	}
}

func inspect(w io.Writer, backends []*dto.Backend) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"model", "direction", "field", "wire name", "type", "mark", "required", "excluded"})
	for _, b := range backends {
		for _, f := range b.FieldDefinitions() {
			mark := string(f.DTOField.Mark)
			if mark == "" {
				mark = "-"
			}
			table.Append([]string{
				b.TransferModelName(),
				b.Direction().String(),
				f.Name(),
				f.SerializationName,
				f.Type().String(),
				mark,
				strconv.FormatBool(f.IsRequired()),
				strconv.FormatBool(f.IsExcluded),
			})
		}
	}
	table.Render()
	return nil
}

func writeTo(stdout io.Writer, path string, fn func(io.Writer) error) (err error) {
	if path == "" {
		return fn(stdout)
	}
	f, err := os.Create(path) //nolint:gosec // user-provided CLI flag
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(f)
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func seedBooks() []Book {
	return []Book{
		{Title: "Dune", Author: "Frank Herbert", Pages: 412},
		{Title: "Solaris", Author: "Stanislaw Lem", Pages: 204},
	}
}

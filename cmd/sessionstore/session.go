package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/sessionstore"
	"github.com/aretw0/sessionstore/pkg/domain"
	"github.com/aretw0/sessionstore/pkg/session"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored sessions",
	Long:  `Create, inspect, touch and remove sessions in the configured backend. With the in-memory backend sessions do not outlive the command.`,
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a session and print its id",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		warnEphemeral(a)

		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			id = uuid.NewString()
		}
		language, _ := cmd.Flags().GetString("language")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if !cmd.Flags().Changed("ttl") {
			ttl = a.cfg.DefaultTTL
		}
		ifAbsent, _ := cmd.Flags().GetBool("if-absent")

		files, err := collectFiles(cmd)
		if err != nil {
			return err
		}

		manager := newManager(a)
		if ifAbsent {
			_, created, err := manager.GetOrCreate(cmd.Context(), id, func() *domain.Session {
				return domain.NewSession(language, ttl, files)
			})
			if err != nil {
				return err
			}
			if !created {
				fmt.Fprintf(cmd.ErrOrStderr(), "Session '%s' already exists\n", id)
			}
		} else if err := manager.Create(cmd.Context(), id, domain.NewSession(language, ttl, files)); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var sessionGetCmd = &cobra.Command{
	Use:   "get <session-id>",
	Short: "Print a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		s, ok, err := a.store.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", args[0], err)
		}
		if !ok {
			return fmt.Errorf("session '%s' not found or expired", args[0])
		}

		output, _ := cmd.Flags().GetString("output")
		return printSession(cmd.OutOrStdout(), s, output, isTerminal(cmd.OutOrStdout()))
	},
}

var sessionTouchCmd = &cobra.Command{
	Use:   "touch <session-id>...",
	Short: "Mark sessions as used now, extending their life",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		manager := newManager(a)
		var failed int
		for _, id := range args {
			_, ok, err := manager.Touch(cmd.Context(), id)
			switch {
			case err != nil:
				fmt.Fprintf(cmd.ErrOrStderr(), "Error touching '%s': %v\n", id, err)
				failed++
			case !ok:
				fmt.Fprintf(cmd.ErrOrStderr(), "Session '%s' not found or expired\n", id)
				failed++
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Touched session '%s'\n", id)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d sessions could not be touched", failed, len(args))
		}
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Remove one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		manager := newManager(a)
		var failed int
		for _, id := range args {
			if err := manager.Delete(cmd.Context(), id); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
				failed++
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d sessions could not be removed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionGetCmd)
	sessionCmd.AddCommand(sessionTouchCmd)
	sessionCmd.AddCommand(sessionRmCmd)

	sessionCreateCmd.Flags().String("id", "", "Session id (default: random UUID)")
	sessionCreateCmd.Flags().StringP("language", "l", "", "Language tag of the session")
	sessionCreateCmd.Flags().Duration("ttl", time.Hour, "Idle time before the session expires (default from config)")
	sessionCreateCmd.Flags().StringArrayP("file", "f", nil, "File as path=content (repeatable)")
	sessionCreateCmd.Flags().StringArray("from-file", nil, "Local file to include under its relative path (repeatable)")
	sessionCreateCmd.Flags().Bool("if-absent", false, "Keep an existing live session instead of overwriting it")
	_ = sessionCreateCmd.MarkFlagRequired("language")

	sessionGetCmd.Flags().StringP("output", "o", "json", "Output format: json or yaml")
}

func newManager(a *app) *session.Manager {
	opts := []session.Option{
		session.WithLogger(a.logger),
		session.WithLockTTL(a.cfg.LockTTL),
	}
	if locker := a.store.Locker(); locker != nil {
		opts = append(opts, session.WithLocker(locker))
	}
	return session.NewManager(a.store, opts...)
}

func warnEphemeral(a *app) {
	if a.store.Backend() == sessionstore.BackendMemory {
		a.logger.Warn("In-memory backend: the session is discarded when this command exits; set REDIS_URL to persist it")
	}
}

func collectFiles(cmd *cobra.Command) (map[string]string, error) {
	files := make(map[string]string)

	inline, _ := cmd.Flags().GetStringArray("file")
	for _, f := range inline {
		path, content, ok := strings.Cut(f, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --file %q: expected path=content", f)
		}
		files[path] = content
	}

	local, _ := cmd.Flags().GetStringArray("from-file")
	for _, p := range local {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		files[filepath.ToSlash(filepath.Clean(p))] = string(data)
	}

	return files, nil
}

// sessionView is the human-oriented rendering of a session.
type sessionView struct {
	Language string            `yaml:"language"`
	TTL      string            `yaml:"ttl"`
	LastUsed string            `yaml:"last_used"`
	Expires  string            `yaml:"expires"`
	Files    map[string]string `yaml:"files"`
}

func printSession(w io.Writer, s *domain.Session, format string, pretty bool) error {
	switch format {
	case "json":
		var (
			data []byte
			err  error
		)
		if pretty {
			data, err = json.MarshalIndent(s, "", "  ")
		} else {
			data, err = json.Marshal(s)
		}
		if err != nil {
			return fmt.Errorf("error marshaling session: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(sessionView{
			Language: s.Language,
			TTL:      s.TTL.String(),
			LastUsed: s.LastUsed.UTC().Format(time.RFC3339Nano),
			Expires:  s.LastUsed.Add(s.TTL).UTC().Format(time.RFC3339Nano),
			Files:    s.Files,
		})
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

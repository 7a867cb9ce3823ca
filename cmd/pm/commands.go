package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/credvault/auth"
	"github.com/Hussein-Mazeh/credvault/internal/secret"
	"github.com/Hussein-Mazeh/credvault/internal/service"
	"github.com/Hussein-Mazeh/credvault/internal/site"
	"github.com/Hussein-Mazeh/credvault/internal/vault"
	"github.com/Hussein-Mazeh/credvault/krypto"
	"github.com/Hussein-Mazeh/credvault/store"
)

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return userError{msg: err.Error()}
		}
		return nil
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return userError{msg: err.Error()}
	}
	return nil
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new empty vault",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exists, err := a.vaultExists()
			if err != nil {
				return err
			}
			if exists {
				return userErrorf("vault already exists at %s", a.cfg.Vault.Path)
			}

			pw, err := a.newMasterSecret("New master secret: ")
			if err != nil {
				return err
			}
			s, err := service.Unlock(pw, a.cfg.Vault.Path, a.options())
			if err != nil {
				return explain(err)
			}
			defer a.closeSession(s)

			if err := s.Persist(); err != nil {
				return err
			}
			info, err := s.Info()
			if err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "created vault %s at %s", info.ID, info.Path)
			return nil
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var (
		username string
		generate bool
	)
	cmd := &cobra.Command{
		Use:   "add <site>",
		Short: "Store or replace the credential for a site",
		Example: `  pm add bank.com --user bob
  pm add mail.example --user alice --generate`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			s, err := a.unlockExisting()
			if err != nil {
				return err
			}
			defer a.closeSession(s)
			// fail on a mistyped secret before asking for the new password
			if err := s.VerifyKey(); err != nil {
				return explain(err)
			}

			var password string
			if generate {
				password, err = s.GeneratePassword(a.cfg.Generator.Length, a.cfg.Generator.Symbols)
				if err != nil {
					return explain(err)
				}
			} else {
				pw, err := a.in.SecretConfirmed("Password for "+name+": ", "Confirm password: ")
				if err != nil {
					return explain(err)
				}
				password = string(pw)
				secret.Wipe(pw)
			}

			if err := s.AddEntry(name, username, password); err != nil {
				return explain(err)
			}
			if err := s.Persist(); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "stored credential for %s", name)
			if generate {
				fmt.Fprintln(cmd.OutOrStdout(), password)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "", "username for the site (required)")
	cmd.Flags().BoolVarP(&generate, "generate", "g", false, "generate the password instead of prompting")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <site>",
		Short: "Print the credential stored for a site",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.unlockExisting()
			if err != nil {
				return err
			}
			defer a.closeSession(s)

			cred, err := s.RetrieveEntry(args[0])
			if err != nil {
				return explain(err)
			}
			printCredential(cmd.OutOrStdout(), cred)
			return nil
		},
	}
}

func printCredential(w io.Writer, cred vault.Credential) {
	printField(w, "site", cred.Site)
	printField(w, "username", cred.Username)
	printField(w, "password", cred.Password)
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <site>",
		Aliases: []string{"rm"},
		Short:   "Remove the credential stored for a site",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.unlockExisting()
			if err != nil {
				return err
			}
			defer a.closeSession(s)

			if err := s.DeleteEntry(args[0]); err != nil {
				return explain(err)
			}
			if err := s.Persist(); err != nil {
				return err
			}
			printSuccess(cmd.OutOrStdout(), "deleted credential for %s", args[0])
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored sites in lexicographic order",
		Args:    noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.unlockExisting()
			if err != nil {
				return err
			}
			defer a.closeSession(s)

			sites, err := s.ListEntries()
			if err != nil {
				return err
			}
			for _, name := range sites {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newGenerateCmd(a *app) *cobra.Command {
	var showStrength bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Print a random password",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := auth.GeneratePassword(a.cfg.Generator.Length, a.cfg.Generator.Symbols)
			if err != nil {
				return explain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), pw)
			if showStrength {
				r := auth.Strength(pw)
				printField(cmd.ErrOrStderr(), "strength", fmt.Sprintf("%d/4 (%s), crack time %s", r.Score, r.Label(), r.CrackTime))
			}
			return nil
		},
	}
	cmd.Flags().IntP("length", "l", 16, "password length")
	cmd.Flags().BoolP("symbols", "s", true, "include symbols")
	cmd.Flags().BoolVar(&showStrength, "strength", false, "print a zxcvbn strength estimate to stderr")
	_ = a.v.BindPFlag("generator.length", cmd.Flags().Lookup("length"))
	_ = a.v.BindPFlag("generator.symbols", cmd.Flags().Lookup("symbols"))
	return cmd
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show vault metadata",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.unlockExisting()
			if err != nil {
				return err
			}
			defer a.closeSession(s)

			info, err := s.Info()
			if err != nil {
				return err
			}
			printInfo(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

func printInfo(w io.Writer, info service.Info) {
	printField(w, "id", info.ID)
	printField(w, "path", info.Path)
	printField(w, "backend", info.Backend)
	printField(w, "kdf", describeKDF(info.KDF))
	printField(w, "cipher", info.Cipher)
	printField(w, "entries", info.Entries)
	printField(w, "created", info.CreatedAt.Local().Format(time.RFC3339))
	printField(w, "updated", info.UpdatedAt.Local().Format(time.RFC3339))
	printField(w, "mlock", info.MemoryLocked)
	if info.Dirty {
		printWarn(w, "unsaved changes")
	}
}

func describeKDF(k vault.KDFConfig) string {
	if k.Name == krypto.KDFArgon2id {
		return fmt.Sprintf("%s (memory %d MiB, time %d, parallelism %d)", k.Name, k.MemoryMB, k.Time, k.Parallelism)
	}
	return fmt.Sprintf("%s (%d iterations)", k.Name, k.Iterations)
}

// newInspectCmd dumps the stored document without decrypting anything.
func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Dump vault metadata and sealed blobs without the master secret",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := store.Open(a.cfg.Vault.Path, a.cfg.Vault.Backend)
			if err != nil {
				return err
			}
			defer backend.Close()

			doc, err := backend.Load()
			if err != nil {
				if errors.Is(err, store.ErrVaultNotFound) {
					return userErrorf("no vault at %s", a.cfg.Vault.Path)
				}
				return explain(err)
			}

			out := cmd.OutOrStdout()
			printField(out, "id", doc.Header.ID)
			printField(out, "version", doc.Header.Version)
			printField(out, "kdf", describeKDF(doc.Header.KDF))
			printField(out, "cipher", doc.Header.Cipher)
			printField(out, "salt", base64.StdEncoding.EncodeToString(doc.Header.Salt))
			if len(doc.Entries) == 0 {
				fmt.Fprintln(out, "no credentials stored")
				return nil
			}
			for _, e := range doc.Entries {
				fmt.Fprintf(out, "%s | %s (updated %s)\n", e.Site, e.Username, e.UpdatedAt.Format(time.RFC3339))
				fmt.Fprintf(out, "  password (base64, %d bytes): %s\n", len(e.Password), base64.StdEncoding.EncodeToString(e.Password))
			}
			return nil
		},
	}
}

func newPasswdCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the master secret and re-encrypt every entry",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.unlockExisting()
			if err != nil {
				return err
			}
			defer a.closeSession(s)

			// catch a mistyped current secret before rewriting anything
			sites, err := s.ListEntries()
			if err != nil {
				return err
			}
			for _, name := range sites {
				if _, err := s.RetrieveEntry(name); err != nil {
					return explain(err)
				}
			}

			pw, err := a.newMasterSecret("New master secret: ")
			if err != nil {
				return err
			}
			if err := s.ChangeMaster(pw); err != nil {
				return explain(err)
			}
			printSuccess(cmd.OutOrStdout(), "master secret changed; %d entries re-encrypted", len(sites))
			return nil
		},
	}
}

// newFindCmd reads site identifiers only, so no master secret is needed.
func newFindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find <url>",
		Short: "List stored sites that belong to the domain of a URL",
		Long: `find matches stored site identifiers against the registrable domain
(eTLD+1) of a URL and warns about insecure, punycode or lookalike hosts.`,
		Example: `  pm find https://login.bank.com/auth`,
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := store.Open(a.cfg.Vault.Path, a.cfg.Vault.Backend)
			if err != nil {
				return err
			}
			defer backend.Close()

			doc, err := backend.Load()
			if err != nil {
				if errors.Is(err, store.ErrVaultNotFound) {
					return userErrorf("no vault at %s", a.cfg.Vault.Path)
				}
				return explain(err)
			}
			sites := make([]string, 0, len(doc.Entries))
			for _, e := range doc.Entries {
				sites = append(sites, e.Site)
			}
			return printMatches(cmd.OutOrStdout(), args[0], sites)
		},
	}
}

func printMatches(out io.Writer, rawURL string, sites []string) error {
	if v := site.Check(rawURL, ""); !v.OK {
		printWarn(out, "warning: %s: %s", rawURL, strings.Join(v.Reasons, ", "))
		if len(v.Reasons) == 1 && v.Reasons[0] == site.ReasonParse {
			return userErrorf("cannot parse %q as a URL", rawURL)
		}
	}

	matches := site.Find(rawURL, sites)
	if len(matches) == 0 {
		return userErrorf("no stored site matches %s", site.Host(rawURL))
	}
	for _, m := range matches {
		if slices.Contains(m.Verdict.Reasons, site.ReasonConfusable) {
			printWarn(out, "warning: %s only looks like %s", m.Verdict.ETLD1, m.Site)
			continue
		}
		fmt.Fprintln(out, m.Site)
	}
	return nil
}

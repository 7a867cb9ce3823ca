package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Hussein-Mazeh/credvault/internal/secret"
	"github.com/Hussein-Mazeh/credvault/internal/service"
)

func newSessionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Unlock once and run commands interactively",
		Long: `session unlocks the vault and reads commands until quit.
A vault that does not exist yet is created on the first save.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.unlock()
			if err != nil {
				return err
			}
			defer a.closeSession(s)

			out := cmd.OutOrStdout()
			info, err := s.Info()
			if err != nil {
				return err
			}
			if info.New {
				printWarn(out, "new vault; it is written on save")
			}
			fmt.Fprintln(out, "session unlocked; type 'help' for commands")
			return sessionLoop(a, s, out)
		},
	}
}

func sessionLoop(a *app, s *service.Session, out io.Writer) error {
	warnedUnsaved := false
	for {
		line, err := a.in.Line("pm> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				if s.Dirty() {
					printWarn(out, "unsaved changes discarded")
				}
				return nil
			}
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		switch cmd {
		case "help":
			printSessionHelp(out)
		case "add":
			handleSessionError(out, sessionAdd(a, s, out, args))
		case "get":
			handleSessionError(out, sessionGet(s, out, args))
		case "delete", "rm":
			handleSessionError(out, sessionDelete(s, out, args))
		case "list", "ls":
			sites, err := s.ListEntries()
			if err != nil {
				return err
			}
			for _, site := range sites {
				fmt.Fprintln(out, site)
			}
		case "find":
			if len(args) != 1 {
				handleSessionError(out, userError{msg: "usage: find <url>"})
				continue
			}
			sites, err := s.ListEntries()
			if err != nil {
				return err
			}
			handleSessionError(out, printMatches(out, args[0], sites))
		case "generate", "gen":
			handleSessionError(out, sessionGenerate(a, s, out, args))
		case "save":
			if err := s.Persist(); err != nil {
				handleSessionError(out, err)
				continue
			}
			printSuccess(out, "saved")
		case "info":
			info, err := s.Info()
			if err != nil {
				return err
			}
			printInfo(out, info)
		case "exit", "quit":
			if s.Dirty() && !warnedUnsaved {
				printWarn(out, "unsaved changes; run save, or quit again to discard them")
				warnedUnsaved = true
				continue
			}
			return nil
		default:
			printError(out, "unknown command: %s", cmd)
		}
	}
}

func sessionAdd(a *app, s *service.Session, out io.Writer, args []string) error {
	if len(args) < 2 || len(args) > 3 || (len(args) == 3 && args[2] != "-g") {
		return userError{msg: "usage: add <site> <username> [-g]"}
	}
	site, username := args[0], args[1]
	if err := s.VerifyKey(); err != nil {
		return err
	}

	var password string
	if len(args) == 3 {
		pw, err := s.GeneratePassword(a.cfg.Generator.Length, a.cfg.Generator.Symbols)
		if err != nil {
			return err
		}
		password = pw
		fmt.Fprintln(out, pw)
	} else {
		pw, err := a.in.SecretConfirmed("Password: ", "Confirm: ")
		if err != nil {
			return err
		}
		password = string(pw)
		secret.Wipe(pw)
	}

	if err := s.AddEntry(site, username, password); err != nil {
		return err
	}
	printSuccess(out, "stored credential for %s", site)
	return nil
}

func sessionGet(s *service.Session, out io.Writer, args []string) error {
	if len(args) != 1 {
		return userError{msg: "usage: get <site>"}
	}
	cred, err := s.RetrieveEntry(args[0])
	if err != nil {
		return err
	}
	printCredential(out, cred)
	return nil
}

func sessionDelete(s *service.Session, out io.Writer, args []string) error {
	if len(args) != 1 {
		return userError{msg: "usage: delete <site>"}
	}
	if err := s.DeleteEntry(args[0]); err != nil {
		return err
	}
	printSuccess(out, "deleted credential for %s", args[0])
	return nil
}

func sessionGenerate(a *app, s *service.Session, out io.Writer, args []string) error {
	length, symbols := a.cfg.Generator.Length, a.cfg.Generator.Symbols
	for _, arg := range args {
		switch arg {
		case "--no-symbols", "-n":
			symbols = false
		default:
			n, err := strconv.Atoi(arg)
			if err != nil {
				return userError{msg: "usage: generate [length] [--no-symbols]"}
			}
			length = n
		}
	}
	pw, err := s.GeneratePassword(length, symbols)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, pw)
	return nil
}

func handleSessionError(out io.Writer, err error) {
	if err == nil {
		return
	}
	err = explain(err)

	var uerr userError
	if errors.As(err, &uerr) {
		printError(out, "%s", uerr.Error())
		return
	}
	printError(out, "error: %v", err)
}

func printSessionHelp(out io.Writer) {
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  add <site> <username> [-g]   store a credential (-g generates the password)")
	fmt.Fprintln(out, "  get <site>                   show a credential")
	fmt.Fprintln(out, "  delete <site>                remove a credential")
	fmt.Fprintln(out, "  list                         list sites")
	fmt.Fprintln(out, "  find <url>                   list sites matching the URL's domain")
	fmt.Fprintln(out, "  generate [length] [-n]       print a random password (-n: no symbols)")
	fmt.Fprintln(out, "  save                         write the vault")
	fmt.Fprintln(out, "  info                         show vault metadata")
	fmt.Fprintln(out, "  quit | exit")
}

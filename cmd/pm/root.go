package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Hussein-Mazeh/credvault/auth"
	"github.com/Hussein-Mazeh/credvault/internal/config"
	"github.com/Hussein-Mazeh/credvault/internal/logging"
	"github.com/Hussein-Mazeh/credvault/internal/secret"
	"github.com/Hussein-Mazeh/credvault/internal/service"
	"github.com/Hussein-Mazeh/credvault/internal/vault"
	"github.com/Hussein-Mazeh/credvault/store"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	log        *zap.Logger
	in         *prompter
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "pm",
		Short:         "Local encrypted credential vault",
		Long:          `pm keeps site credentials in a single vault file sealed with a key derived from one master secret.`,
		Version:       cliVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.configFile)
			if err != nil {
				return userError{msg: err.Error()}
			}
			log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			a.cfg = cfg
			a.log = log
			a.in = newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return userError{msg: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default: pm.yaml in . or $HOME/.config/pm)")
	pf.String("vault", "", "vault file path")
	pf.String("backend", "", "storage backend: auto, file or sqlite")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: console or json")
	_ = a.v.BindPFlag("vault.path", pf.Lookup("vault"))
	_ = a.v.BindPFlag("vault.backend", pf.Lookup("backend"))
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", pf.Lookup("log-format"))

	root.AddCommand(
		newInitCmd(a),
		newAddCmd(a),
		newGetCmd(a),
		newDeleteCmd(a),
		newListCmd(a),
		newGenerateCmd(a),
		newInfoCmd(a),
		newInspectCmd(a),
		newFindCmd(a),
		newPasswdCmd(a),
		newSessionCmd(a),
	)
	return root
}

func (a *app) options() service.Options {
	return service.Options{
		Backend: a.cfg.Vault.Backend,
		KDF:     a.cfg.KDFParams(),
		Cipher:  a.cfg.Cipher,
		Lock:    a.cfg.Vault.Lock,
		Logger:  a.log,
	}
}

func (a *app) vaultExists() (bool, error) {
	_, err := os.Stat(a.cfg.Vault.Path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat vault: %w", err)
	}
}

// unlockExisting prompts for the master secret and opens a vault that must already exist.
func (a *app) unlockExisting() (*service.Session, error) {
	ok, err := a.vaultExists()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, userErrorf("no vault at %s; run pm init first", a.cfg.Vault.Path)
	}
	return a.unlock()
}

func (a *app) unlock() (*service.Session, error) {
	pw, err := a.in.Secret("Master secret: ")
	if err != nil {
		return nil, explain(err)
	}
	s, err := service.Unlock(pw, a.cfg.Vault.Path, a.options())
	if err != nil {
		return nil, explain(err)
	}
	return s, nil
}

// closeSession closes s and logs release failures, which the user cannot act on.
func (a *app) closeSession(s io.Closer) {
	if err := s.Close(); err != nil {
		a.log.Warn("close session", zap.String("path", a.cfg.Vault.Path), zap.Error(err))
	}
}

// newMasterSecret prompts twice for a master secret and applies the policy.
func (a *app) newMasterSecret(prompt string) ([]byte, error) {
	pw, err := a.in.SecretConfirmed(prompt, "Confirm master secret: ")
	if err != nil {
		return nil, explain(err)
	}
	if a.cfg.Policy.Enforce {
		if err := auth.ValidateMasterPasswordAdvanced(context.Background(), string(pw), a.cfg.ValidateOptions()); err != nil {
			secret.Wipe(pw)
			return nil, explain(err)
		}
	}
	return pw, nil
}

// explain turns errors the user can act on into userError messages.
func explain(err error) error {
	var uerr userError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &uerr):
		return err
	case errors.Is(err, store.ErrLocked):
		return userError{msg: "vault is in use by another pm process"}
	case errors.Is(err, vault.ErrCorrupt):
		return userErrorf("vault file is unreadable: %v", err)
	case errors.Is(err, service.ErrIntegrity):
		return userError{msg: "cannot decrypt entry: wrong master secret or tampered vault"}
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrBreachedPassword),
		errors.Is(err, auth.ErrInvalidLength):
		return userError{msg: err.Error()}
	case errors.Is(err, io.EOF):
		return userError{msg: "no input"}
	default:
		return err
	}
}

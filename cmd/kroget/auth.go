package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/krogetapp/kroget/internal/authflow"
	"github.com/krogetapp/kroget/internal/domain/models"
	"github.com/krogetapp/kroget/pkg/logger"
)

const loginTimeout = 5 * time.Minute

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize cart access through the browser",
	Long: `Prints an authorization URL to open in your browser, then waits for the
redirect on localhost and stores the resulting user token. Required once
before any cart mutation; afterwards the refresh token keeps the session
alive without further logins.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}

		state := uuid.NewString()
		scopes := []string{"cart.basic:write", "product.compact"}
		authorizeURL := a.client.BuildAuthorizeURL(a.cfg.Auth.RedirectURI, state, scopes)

		fmt.Println("Open this URL in your browser to authorize cart access:")
		fmt.Println()
		fmt.Println("  " + authorizeURL)
		fmt.Println()
		fmt.Printf("Waiting for the redirect on %s ...\n", a.cfg.Auth.RedirectURI)

		ctx, cancel := context.WithTimeout(cmd.Context(), loginTimeout)
		defer cancel()

		server := authflow.NewServer(a.cfg.Auth.CallbackPort, logger.Named(a.logger, "authflow"))
		code, err := server.WaitForCode(ctx, state)
		if err != nil {
			return err
		}

		if err := a.tokens.CompleteAuthorization(ctx, code, a.cfg.Auth.RedirectURI); err != nil {
			return err
		}

		fmt.Println("Login complete. Cart access is now authorized.")
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show token state per credential scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		states, err := a.tokens.States()
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(states)
		}
		for _, state := range states {
			if state.ExpiresAt != nil {
				fmt.Printf("%-8s %-8s expires %s\n", state.Scope, state.State, state.ExpiresAt.Format(time.RFC3339))
			} else {
				fmt.Printf("%-8s %s\n", state.Scope, state.State)
			}
		}
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored user authorization",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		if err := a.tokenRepo.Delete(models.ScopeCart); err != nil {
			return err
		}
		fmt.Println("User authorization removed.")
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd, authStatusCmd, authLogoutCmd)
}

// Command gdrive-auth runs the OAuth consent flow once and prints the
// refresh token the gdrive storage provider needs in GDRIVE_REFRESH_TOKEN.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"clipforge/internal/config"
	"clipforge/internal/pkg/logger"
	"clipforge/internal/storage"
)

// errNoRefreshToken means Google remembered an earlier grant.
var errNoRefreshToken = errors.New("no refresh token returned; revoke the app at https://myaccount.google.com/permissions and retry")

type callbackResult struct {
	code string
	err  error
}

func main() {
	_ = godotenv.Load()
	log := logger.NewDefault().WithComponent("gdrive-auth")
	if err := newRootCmd().Execute(); err != nil {
		log.LogFatal("authorization failed", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		clientID     string
		clientSecret string
		timeout      time.Duration
	)
	cmd := &cobra.Command{
		Use:           "gdrive-auth",
		Short:         "Obtain a Google Drive refresh token for ClipForge",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if clientID == "" || clientSecret == "" {
				return errors.New("GDRIVE_CLIENT_ID and GDRIVE_CLIENT_SECRET are required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			token, err := authorize(ctx, cmd.OutOrStdout(), clientID, clientSecret)
			if err != nil {
				return err
			}
			if token.RefreshToken == "" {
				return errNoRefreshToken
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\nGDRIVE_REFRESH_TOKEN="+token.RefreshToken)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client-id", config.Env("GDRIVE_CLIENT_ID", ""), "OAuth client id")
	cmd.Flags().StringVar(&clientSecret, "client-secret", config.Env("GDRIVE_CLIENT_SECRET", ""), "OAuth client secret")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "how long to wait for consent")
	return cmd
}

// authorize serves a one-shot callback on a loopback port and exchanges the
// code it receives. The exchange is bound to a PKCE verifier.
func authorize(ctx context.Context, out io.Writer, clientID, clientSecret string) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	redirectURL := fmt.Sprintf("http://%s/callback", ln.Addr())
	conf := storage.DriveOAuthConfig(clientID, clientSecret, redirectURL)

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.Handle("GET /callback", callbackHandler(state, results))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	// prompt=consent forces a refresh token even for a returning user.
	authURL := conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
	)
	fmt.Fprintf(out, "Open this URL in your browser:\n\n%s\n\nWaiting for the callback on %s\n", authURL, redirectURL)

	select {
	case res := <-results:
		if res.err != nil {
			return nil, res.err
		}
		return conf.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for consent: %w", ctx.Err())
	}
}

// callbackHandler reports the first authorization response that carries
// state. Later requests are answered but not reported.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res := callbackResult{code: q.Get("code")}
		switch {
		case q.Get("state") != state:
			res.err = errors.New("state mismatch")
		case q.Get("error") != "":
			res.err = fmt.Errorf("consent refused: %s", q.Get("error"))
		case res.code == "":
			res.err = errors.New("callback carried no code")
		}

		if res.err != nil {
			http.Error(w, res.err.Error(), http.StatusBadRequest)
		} else {
			fmt.Fprintln(w, "ClipForge is authorized. You can close this tab.")
		}
		select {
		case results <- res:
		default:
		}
	})
}

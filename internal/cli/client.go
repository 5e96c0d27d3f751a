package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/treasury-pool/treasury/internal/api"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiError is an error response from the service.
type apiError struct {
	Status  int
	Kind    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// call sends a JSON request as --as and decodes the response into out.
func call(ctx context.Context, method, path string, body, out any) error {
	base, err := apiBase()
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if flagAs != "" {
		req.Header.Set(api.CallerHeader, flagAs)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach treasury at %s: %w\nStart it with: treasury serve", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error.Message == "" {
			return &apiError{Status: resp.StatusCode, Message: resp.Status}
		}
		return &apiError{Status: resp.StatusCode, Kind: e.Error.Type, Message: e.Error.Message}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// requireAs fails commands that act on behalf of an account.
func requireAs() error {
	if flagAs == "" {
		return errors.New("this command acts as an account: pass --as or set TREASURY_ACCOUNT")
	}
	return nil
}

// accountArg returns args[0] when given, else --as.
func accountArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if err := requireAs(); err != nil {
		return "", err
	}
	return flagAs, nil
}

// amount mirrors the API's amount rendering.
type amount struct {
	Units  int64  `json:"units"`
	Amount string `json:"amount"`
}

package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"
)

// daemonHTTP is the client for talking to a running watch daemon. The
// timeout is short: statusline queries come from editor status lines.
var daemonHTTP = &http.Client{Timeout: 2 * time.Second}

func daemonURL(path string) string {
	return "http://" + viper.GetString("listen_addr") + path
}

// daemonAlive reports whether a watch daemon answers on the configured
// address.
func daemonAlive() bool {
	resp, err := daemonHTTP.Get(daemonURL("/healthz"))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// daemonPost POSTs to the daemon API and decodes the JSON response into out
// (out may be nil). Non-2xx responses become errors carrying the server's
// error message.
func daemonPost(path string, out any) error {
	resp, err := daemonHTTP.Post(daemonURL(path), "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
			return fmt.Errorf("%s", body.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// daemonGet GETs from the daemon API and decodes the JSON response.
func daemonGet(path string, out any) error {
	resp, err := daemonHTTP.Get(daemonURL(path))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

package publisher

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dennishilgert/actionpack/internal/pkg/faults"
	"github.com/dennishilgert/actionpack/internal/pkg/naming"
	"github.com/dennishilgert/actionpack/pkg/logger"
)

var log = logger.NewLogger("actionpack.publisher")

const (
	ApiKeyEnvVar  = "__OW_API_KEY"
	ApiHostEnvVar = "__OW_API_HOST"

	// Maximum number of response body bytes attached to a publish fault.
	maxErrorBodyBytes = 4096
)

// Credentials authenticate against the management API of the platform.
type Credentials struct {
	// ApiKey is the "<user>:<password>" pair used for basic auth.
	ApiKey string

	// ApiHost is the base url of the platform. A host without scheme is reached over https.
	ApiHost string
}

// Validate checks that both values are set and the key can be split into user and password.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.ApiKey) == "" {
		return faults.Newf(faults.Config, "required environment variable %s is not set", ApiKeyEnvVar)
	}
	if strings.TrimSpace(c.ApiHost) == "" {
		return faults.Newf(faults.Config, "required environment variable %s is not set", ApiHostEnvVar)
	}
	if !strings.Contains(c.ApiKey, ":") {
		return faults.Newf(faults.Config, "%s must have the form <user>:<password>", ApiKeyEnvVar)
	}
	return nil
}

// basicAuth splits the key on the first colon.
func (c Credentials) basicAuth() (string, string) {
	user, password, _ := strings.Cut(c.ApiKey, ":")
	return user, password
}

// Override returns the credentials with every non-empty value of other applied.
func (c Credentials) Override(other Credentials) Credentials {
	if other.ApiKey != "" {
		c.ApiKey = other.ApiKey
	}
	if other.ApiHost != "" {
		c.ApiHost = other.ApiHost
	}
	return c
}

// Action is the action to create or replace on the platform.
type Action struct {
	Namespace  string
	Name       string
	Kind       string
	Main       string
	BundlePath string
}

type execSpec struct {
	Kind string `json:"kind"`
	Code string `json:"code"`
	Main string `json:"main,omitempty"`
}

type actionSpec struct {
	Exec execSpec `json:"exec"`
}

// Response is the accepted answer of the platform.
type Response struct {
	StatusCode int
	Message    string
	Body       json.RawMessage
}

type Options struct {
	Credentials   Credentials
	Timeout       time.Duration
	SkipTlsVerify bool
}

type Publisher interface {
	// Publish uploads the action bundle, replacing an existing action of the same name.
	Publish(ctx context.Context, action Action) (*Response, error)
}

type publisher struct {
	credentials Credentials
	timeout     time.Duration
	httpClient  *http.Client
}

// NewPublisher creates a new Publisher. The credentials are validated up front.
func NewPublisher(opts Options) (Publisher, error) {
	if err := opts.Credentials.Validate(); err != nil {
		return nil, err
	}
	return &publisher{
		credentials: opts.Credentials,
		timeout:     opts.Timeout,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: opts.SkipTlsVerify,
				},
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}, nil
}

func (p *publisher) Publish(ctx context.Context, action Action) (*Response, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	bundle, err := os.ReadFile(action.BundlePath)
	if err != nil {
		return nil, faults.Wrap(faults.Filesystem, err, "failed to read action zip file")
	}
	payload, err := json.Marshal(actionSpec{
		Exec: execSpec{
			Kind: action.Kind,
			Code: base64.StdEncoding.EncodeToString(bundle),
			Main: action.Main,
		},
	})
	if err != nil {
		return nil, faults.Wrap(faults.Publish, err, "failed to marshal action payload")
	}

	url := naming.ActionUrl(p.credentials.ApiHost, action.Namespace, action.Name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return nil, faults.Wrap(faults.Publish, err, "failed to create publish request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(p.credentials.basicAuth())

	log.Infof("publishing action %s/%s to %s (%d bytes)", action.Namespace, action.Name, naming.NormalizeApiHost(p.credentials.ApiHost), len(bundle))
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, faults.Wrap(faults.Publish, err, fmt.Sprintf("failed to publish action %s", action.Name))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, faults.Wrap(faults.Publish, err, "failed to read publish response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, faults.Newf(faults.Publish, "failed to publish action %s: status %d: %s", action.Name, resp.StatusCode, truncate(body))
	}

	log.Debugf("publish response: %s", truncate(body))
	response := &Response{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("successfully created a new action %s", action.Name),
	}
	if json.Valid(body) {
		response.Body = body
	}
	return response, nil
}

func truncate(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBodyBytes {
		return text[:maxErrorBodyBytes] + "..."
	}
	return text
}

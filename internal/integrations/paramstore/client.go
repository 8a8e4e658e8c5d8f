package paramstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the subset of *ssm.Client the store uses.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParameters(ctx context.Context, in *ssm.GetParametersInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersOutput, error)
}

// maxBatch is the GetParameters limit.
const maxBatch = 10

// Client reads deployment secrets stored as SecureString parameters under a
// common prefix. The JWT verifier reads its signing key with GetParameter;
// startup resolves the identity DSN and Redis URL with one GetParameters call.
type Client struct {
	api    ssmAPI
	prefix string
}

type Option func(*Client)

// WithPrefix makes relative names resolve under prefix, e.g. "/jobboard/prod".
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	}
}

func New(api ssmAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Path returns the absolute parameter name for name.
func (c *Client) Path(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "/") || c.prefix == "" {
		return name
	}
	return c.prefix + "/" + name
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	if strings.TrimSpace(name) == "" {
		return "", errors.New("paramstore: name is required")
	}
	path := c.Path(name)

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(path),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", path, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q missing value", path)
	}
	return *out.Parameter.Value, nil
}

// GetParameters loads several parameters, keyed by the names passed in.
// Any name SSM does not know fails the whole call.
func (c *Client) GetParameters(ctx context.Context, names ...string) (map[string]string, error) {
	if c.api == nil {
		return nil, errors.New("paramstore: client not initialized")
	}
	byPath := make(map[string]string, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("paramstore: name is required")
		}
		byPath[c.Path(name)] = name
	}
	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	values := make(map[string]string, len(names))
	for start := 0; start < len(paths); start += maxBatch {
		end := min(start+maxBatch, len(paths))
		out, err := c.api.GetParameters(ctx, &ssm.GetParametersInput{
			Names:          paths[start:end],
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("paramstore: get parameters: %w", err)
		}
		if len(out.InvalidParameters) > 0 {
			return nil, fmt.Errorf("paramstore: unknown parameters %s", strings.Join(out.InvalidParameters, ", "))
		}
		for _, p := range out.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			if name, ok := byPath[*p.Name]; ok {
				values[name] = *p.Value
			}
		}
	}
	for _, name := range names {
		if _, ok := values[name]; !ok {
			return nil, fmt.Errorf("paramstore: parameter %q missing value", c.Path(name))
		}
	}
	return values, nil
}

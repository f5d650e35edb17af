package quantum

import (
	"context"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// HandshakeRunner performs one TLS handshake offering a single group and
// returns the client's textual trace. The trace is parsed even when err is
// non-nil because TLS clients exit non-zero after printing a failed
// handshake.
type HandshakeRunner interface {
	Handshake(ctx context.Context, host string, port int, alg AlgorithmInfo) (string, error)
}

// OpenSSLRunner runs "openssl s_client" with -msg so the raw ServerHello
// bytes appear in the output.
type OpenSSLRunner struct {
	binary string
}

// OpenSSLOption configures an OpenSSLRunner.
type OpenSSLOption func(*OpenSSLRunner)

// WithOpenSSLBinary sets the openssl executable, e.g. an oqs-provider build.
func WithOpenSSLBinary(path string) OpenSSLOption {
	return func(r *OpenSSLRunner) {
		if path != "" {
			r.binary = path
		}
	}
}

// NewOpenSSLRunner creates a runner using "openssl" from PATH.
func NewOpenSSLRunner(opts ...OpenSSLOption) *OpenSSLRunner {
	r := &OpenSSLRunner{binary: "openssl"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handshake implements HandshakeRunner.
func (r *OpenSSLRunner) Handshake(ctx context.Context, host string, port int, alg AlgorithmInfo) (string, error) {
	cmd := exec.CommandContext(ctx, r.binary, opensslArgs(host, port, alg)...) //nolint:gosec // binary is operator configured
	cmd.Stdin = strings.NewReader("Q\n")
	if alg.AddEnv && alg.EnvironmentVariable != "" {
		cmd.Env = append(os.Environ(), alg.EnvironmentVariable+"="+alg.Name)
	}

	out, err := cmd.CombinedOutput()
	return string(out), err
}

func opensslArgs(host string, port int, alg AlgorithmInfo) []string {
	args := []string{
		"s_client",
		"-connect", net.JoinHostPort(host, strconv.Itoa(port)),
	}
	if net.ParseIP(host) == nil {
		args = append(args, "-servername", host)
	}
	if !alg.AddEnv {
		args = append(args, "-groups", alg.Name)
	}
	return append(args, "-msg", "-showcerts")
}

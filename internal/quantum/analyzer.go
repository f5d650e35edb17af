package quantum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Failure messages reported by the analyzer.
const (
	MsgNoAlgorithms  = "No algorithms"
	MsgNoNegotiation = "Could not negotiate quantum safe handshake"
)

// Outcome is the verdict of a quantum-safe handshake check.
type Outcome struct {
	Success     bool
	Message     string
	Algorithm   string
	Kem         KemExtension
	Certificate *CertificateSummary
}

// Analyzer tries candidate key-exchange groups against a host until the
// server negotiates one of them.
type Analyzer struct {
	runner HandshakeRunner
	modern []AlgorithmInfo
	legacy []AlgorithmInfo
	table  *GroupTable
	logger *slog.Logger
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithHandshakeRunner replaces the openssl runner.
func WithHandshakeRunner(r HandshakeRunner) AnalyzerOption {
	return func(a *Analyzer) {
		if r != nil {
			a.runner = r
		}
	}
}

// WithModernAlgorithms replaces the first list tried.
func WithModernAlgorithms(algs []AlgorithmInfo) AnalyzerOption {
	return func(a *Analyzer) {
		a.modern = algs
	}
}

// WithLegacyAlgorithms replaces the fallback list.
func WithLegacyAlgorithms(algs []AlgorithmInfo) AnalyzerOption {
	return func(a *Analyzer) {
		a.legacy = algs
	}
}

// WithGroupTable pins the group table instead of following CurrentGroupTable.
func WithGroupTable(t *GroupTable) AnalyzerOption {
	return func(a *Analyzer) {
		a.table = t
	}
}

// WithLogger sets the analyzer logger.
func WithLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// NewAnalyzer creates an Analyzer with the built-in algorithm lists and
// the openssl runner.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		runner: NewOpenSSLRunner(),
		modern: ModernAlgorithms(),
		legacy: LegacyAlgorithms(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

func (a *Analyzer) groupTable() *GroupTable {
	if a.table != nil {
		return a.table
	}
	return CurrentGroupTable()
}

// QuantumConnect offers each enabled algorithm in turn and succeeds on the
// first handshake whose ServerHello carries that algorithm's group ID.
func (a *Analyzer) QuantumConnect(ctx context.Context, algorithms []AlgorithmInfo, host string, port int) Outcome {
	candidates := enabledAlgorithms(algorithms)
	if len(candidates) == 0 {
		return Outcome{Message: MsgNoAlgorithms}
	}

	table := a.groupTable()
	for _, alg := range candidates {
		if err := ctx.Err(); err != nil {
			return Outcome{Message: fmt.Sprintf("Handshake cancelled: %v", err)}
		}

		output, err := a.runner.Handshake(ctx, host, port, alg)
		kem := FindServerHelloWithTable(output, table)

		a.logger.Debug("quantum handshake attempt",
			"host", host,
			"port", port,
			"algorithm", alg.Name,
			"group", kem.GroupHexStringID,
			"error", err,
		)

		if kem.GroupID == 0 || kem.GroupID != alg.DefaultID {
			continue
		}

		out := Outcome{
			Success:   true,
			Algorithm: alg.Name,
			Kem:       kem,
		}
		if summary, ok := TryBuildSummary(output); ok {
			out.Certificate = &summary
		}
		out.Message = fmt.Sprintf("%s negotiated group %s", alg.Name, kem.GroupHexStringID)
		if kem.IsLongServerHello {
			out.Message += " (multi-record ServerHello)"
		}
		if out.Certificate != nil {
			out.Message += ", " + out.Certificate.String()
		}
		return out
	}

	return Outcome{Message: MsgNoNegotiation}
}

// Validate reports every enabled algorithm whose group ID is missing from
// the active group table. Such an algorithm can still be negotiated, but the
// table and the algorithm lists disagree about what counts as quantum safe.
func (a *Analyzer) Validate() error {
	table := a.groupTable()
	var errs []error
	for _, list := range [][]AlgorithmInfo{a.modern, a.legacy} {
		for _, alg := range enabledAlgorithms(list) {
			if !table.IsQuantumSafe(alg.DefaultID) {
				errs = append(errs, fmt.Errorf("%w: %s (0x%04X) is not in table %q",
					ErrUnknownGroup, alg.Name, alg.DefaultID, table.Version()))
			}
		}
	}
	return errors.Join(errs...)
}

// ProcessBatchAlgorithms tries the modern list, then the legacy list. The
// first success wins.
func (a *Analyzer) ProcessBatchAlgorithms(ctx context.Context, host string, port int) Outcome {
	lists := [][]AlgorithmInfo{a.modern, a.legacy}

	tried := false
	for _, list := range lists {
		if len(enabledAlgorithms(list)) == 0 {
			continue
		}
		tried = true

		out := a.QuantumConnect(ctx, list, host, port)
		if out.Success || ctx.Err() != nil {
			return out
		}
	}

	if !tried {
		return Outcome{Message: MsgNoAlgorithms}
	}
	return Outcome{Message: MsgNoNegotiation}
}

package quantum

// AlgorithmInfo is one key-exchange group offered during a handshake.
type AlgorithmInfo struct {
	// Name is the group name the TLS client understands (e.g. "X25519MLKEM768").
	Name string `yaml:"name"`

	// DefaultID is the group ID the server must echo in its key_share.
	DefaultID uint16 `yaml:"id"`

	Enabled bool `yaml:"enabled"`

	// EnvironmentVariable, when AddEnv is set, is exported with the value
	// Name before the client runs. Legacy oqs-provider builds read their
	// group list from such a variable instead of the -groups flag.
	EnvironmentVariable string `yaml:"env,omitempty"`
	AddEnv              bool   `yaml:"addEnv,omitempty"`
}

// legacyGroupsEnv is the variable oqs-provider configurations expand into
// their default group list.
const legacyGroupsEnv = "DEFAULT_GROUPS"

// ModernAlgorithms returns the standardised ML-KEM and hybrid groups,
// most widely deployed first.
func ModernAlgorithms() []AlgorithmInfo {
	return []AlgorithmInfo{
		{Name: "X25519MLKEM768", DefaultID: 0x11EC, Enabled: true},
		{Name: "SecP256r1MLKEM768", DefaultID: 0x11EB, Enabled: true},
		{Name: "SecP384r1MLKEM1024", DefaultID: 0x11ED, Enabled: true},
		{Name: "MLKEM768", DefaultID: 0x0201, Enabled: true},
		{Name: "MLKEM1024", DefaultID: 0x0202, Enabled: true},
		{Name: "MLKEM512", DefaultID: 0x0200, Enabled: true},
	}
}

// LegacyAlgorithms returns the Kyber draft groups served by older stacks.
func LegacyAlgorithms() []AlgorithmInfo {
	return []AlgorithmInfo{
		{Name: "x25519_kyber768", DefaultID: 0x6399, Enabled: true, EnvironmentVariable: legacyGroupsEnv, AddEnv: true},
		{Name: "p256_kyber768", DefaultID: 0x639A, Enabled: true, EnvironmentVariable: legacyGroupsEnv, AddEnv: true},
		{Name: "kyber768", DefaultID: 0x023C, Enabled: true, EnvironmentVariable: legacyGroupsEnv, AddEnv: true},
		{Name: "kyber512", DefaultID: 0x023A, Enabled: false, EnvironmentVariable: legacyGroupsEnv, AddEnv: true},
	}
}

func enabledAlgorithms(algorithms []AlgorithmInfo) []AlgorithmInfo {
	out := make([]AlgorithmInfo, 0, len(algorithms))
	for _, a := range algorithms {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}

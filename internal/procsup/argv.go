package procsup

import "os"

// Spec is the set of inputs the spawner needs to build one run's argv and
// environment. It is deliberately a plain struct rather than *types.Run so
// callers control exactly which fields influence the child process.
type Spec struct {
	Task              string
	SystemPrompt      string
	Model             string
	ProjectPath       string
	ExtraEnvAllowList []string

	// ResumeToken, if set, resumes a prior external-session by its
	// correlation token (execute_session's resume_token, spec §6).
	ResumeToken string
	// Continue requests the tool's own "continue the most recent
	// conversation in this directory" behavior (continue_session, spec
	// §6), mutually exclusive with ResumeToken.
	Continue bool
}

// defaultEnvAllowList is the safe subset of the parent environment every
// spawned child inherits, per spec §4.3.
var defaultEnvAllowList = []string{"PATH", "HOME", "LANG", "TERM"}

// BuildArgv constructs the child's argv in the fixed order spec §4.3
// names: task prompt, system prompt override, model tag, stream-JSON
// output mode, verbose flag, skip-permissions flag.
func BuildArgv(s Spec) []string {
	argv := []string{"-p", s.Task}
	if s.SystemPrompt != "" {
		argv = append(argv, "--append-system-prompt", s.SystemPrompt)
	}
	if s.Model != "" {
		argv = append(argv, "--model", s.Model)
	}
	argv = append(argv,
		"--output-format", "stream-json",
		"--verbose",
		"--dangerously-skip-permissions",
	)
	if s.ResumeToken != "" {
		argv = append(argv, "--resume", s.ResumeToken)
	} else if s.Continue {
		argv = append(argv, "--continue")
	}
	return argv
}

// BuildEnv assembles the inherited-environment allow-list: PATH, HOME,
// LANG, TERM, plus any explicitly configured extra keys (spec §4.3, §6
// config surface).
func BuildEnv(s Spec) []string {
	keys := make(map[string]struct{}, len(defaultEnvAllowList)+len(s.ExtraEnvAllowList))
	var env []string
	for _, k := range defaultEnvAllowList {
		keys[k] = struct{}{}
	}
	for _, k := range s.ExtraEnvAllowList {
		keys[k] = struct{}{}
	}
	for k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	return env
}

package sandbox

import (
	"fmt"
	"strings"
)

// Environment variables the harness reads to apply OS resource limits via
// setrlimit before user code runs.
const (
	envMemoryLimitMB = "CONJECTURE_MEMORY_LIMIT_MB"
	envCPULimitSec   = "CONJECTURE_CPU_LIMIT_SEC"
)

const harnessTemplate = `import json
import os
import sys
import time

def _apply_limits():
    try:
        import resource
    except ImportError:
        return
    mem_mb = int(os.environ.get(%q, "0"))
    if mem_mb > 0:
        limit = mem_mb * 1024 * 1024
        try:
            resource.setrlimit(resource.RLIMIT_AS, (limit, limit))
        except (ValueError, OSError):
            pass
    cpu_sec = int(os.environ.get(%q, "0"))
    if cpu_sec > 0:
        try:
            resource.setrlimit(resource.RLIMIT_CPU, (cpu_sec, cpu_sec))
        except (ValueError, OSError):
            pass

_apply_limits()

%s

def _restrict_builtins():
    blocked = ("open", "exec", "eval", "compile", "input", "__import__")
    b = __builtins__ if isinstance(__builtins__, dict) else vars(__builtins__)
    for name in blocked:
        try:
            b[name] = None
        except Exception:
            pass

_restrict_builtins()

def run_experiment():
    results = {"output": None, "error": None, "timing": {}}
    start_time = time.time()
    try:
%s
        results["output"] = locals().get("result", "No result variable found")
    except Exception as e:
        results["error"] = str(e)
    finally:
        results["timing"]["total"] = time.time() - start_time
    print(json.dumps(results, default=str))

if __name__ == "__main__":
    run_experiment()
`

// Wrap embeds user code in the execution harness: resource limits applied,
// whitelisted imports preloaded, dangerous builtins disabled, and the result
// reported as a final JSON line. This is containment against accidents, not
// a security boundary; the OS limits are what actually hold.
func Wrap(code string, allowedImports []string) string {
	var imports strings.Builder
	for _, name := range allowedImports {
		fmt.Fprintf(&imports, "import %s\n", name)
	}

	var user strings.Builder
	for _, line := range strings.Split(code, "\n") {
		user.WriteString("        ")
		user.WriteString(line)
		user.WriteString("\n")
	}

	return fmt.Sprintf(harnessTemplate,
		envMemoryLimitMB, envCPULimitSec,
		strings.TrimRight(imports.String(), "\n"),
		strings.TrimRight(user.String(), "\n"))
}

// FallbackProgram is a minimal self-contained experiment used when code
// generation produced nothing runnable.
const FallbackProgram = `import json
import time
import random

def run_experiment():
    results = {"output": None, "error": None, "timing": {}}
    start_time = time.time()
    try:
        data = [random.randint(1, 100) for _ in range(100)]
        result = sum(data) / len(data)
        results["output"] = {
            "result": result,
            "data_size": len(data),
            "description": "Fallback experiment - basic computation",
        }
    except Exception as e:
        results["error"] = str(e)
    finally:
        results["timing"]["total"] = time.time() - start_time
    print(json.dumps(results))

if __name__ == "__main__":
    run_experiment()
`

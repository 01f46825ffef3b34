// Package evaluator implements the code evaluator (fitness function) used
// by the evolutionary solver: it scores a candidate patch by syntax
// validity, runtime behavior, and (if test code is supplied) correctness.
package evaluator

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"noetic/internal/logging"
)

// ErrorClass buckets a runtime failure the way the scoring table does.
type ErrorClass string

const (
	ErrorClassNone  ErrorClass = "none"
	ErrorClassType  ErrorClass = "type"
	ErrorClassName  ErrorClass = "name"
	ErrorClassIndex ErrorClass = "index"
	ErrorClassValue ErrorClass = "value"
	ErrorClassOther ErrorClass = "other"
)

// Result is the fitness verdict for one candidate.
type Result struct {
	Score            int
	SyntaxValid      bool
	RuntimeValid     bool
	CorrectnessValid bool
	Error            string
	HasError         bool
	Output           string
	HasOutput        bool
}

// successSentinel is the text a test harness prints to signal full pass.
const successSentinel = "All tests passed"

// sandboxTimeout bounds the interpreted execution, mirroring the 10s
// out-of-process subprocess deadline described for the evaluator; yaegi
// runs in-process here (see design notes), so the bound is enforced with a
// goroutine + context instead of a subprocess kill.
const sandboxTimeout = 10 * time.Second

// Evaluate scores code. When testCode is supplied (hasTestCode), it is
// appended to the candidate source and must define
// `func RunTests() string`, which Evaluate calls after the candidate's
// top-level declarations are loaded; a return value containing
// successSentinel scores 100.
//
// The candidate package must define `func Solve() (string, error)` as its
// single entry point — the evaluator calls it to probe runtime validity
// when no test code is given.
func Evaluate(ctx context.Context, code string, testCode string, hasTestCode bool) Result {
	full := wrap(code)
	if !hasTestCode {
		return evaluateWithoutTests(ctx, full)
	}
	return evaluateWithTests(ctx, full, testCode)
}

func wrap(code string) string {
	if strings.Contains(code, "package ") {
		return code
	}
	return "package main\n\n" + code
}

func syntaxValid(source string) error {
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, "candidate.go", source, parser.AllErrors)
	return err
}

func evaluateWithoutTests(ctx context.Context, source string) Result {
	if err := syntaxValid(source); err != nil {
		logging.EvaluatorDebug("syntax check failed: %v", err)
		return Result{Score: 0, SyntaxValid: false}
	}

	output, err, class := runSandboxed(ctx, source, "main.Solve")
	if err != nil {
		return Result{
			Score:       runtimeErrorScore(class),
			SyntaxValid: true,
			RuntimeValid: false,
			Error:       err.Error(),
			HasError:    true,
		}
	}
	// Runtime succeeded but there's no test harness to confirm correctness:
	// middle-of-the-road score per the documented 40-60 band.
	return Result{
		Score:        50,
		SyntaxValid:  true,
		RuntimeValid: true,
		Output:       output,
		HasOutput:    true,
	}
}

func evaluateWithTests(ctx context.Context, source string, testCode string) Result {
	combined := source + "\n\n" + testCode
	if err := syntaxValid(combined); err != nil {
		logging.EvaluatorDebug("syntax check failed (with tests): %v", err)
		return Result{Score: 0, SyntaxValid: false}
	}

	output, err, class := runSandboxed(ctx, combined, "main.RunTests")
	if err != nil {
		return Result{
			Score:        runtimeErrorScore(class),
			SyntaxValid:  true,
			RuntimeValid: false,
			Error:        err.Error(),
			HasError:     true,
		}
	}
	if strings.Contains(output, successSentinel) {
		return Result{Score: 100, SyntaxValid: true, RuntimeValid: true, CorrectnessValid: true, Output: output, HasOutput: true}
	}
	return Result{Score: 45, SyntaxValid: true, RuntimeValid: true, Output: output, HasOutput: true}
}

// runSandboxed interprets source with yaegi and invokes the zero-argument
// string-returning function named entryPoint, bounded by sandboxTimeout.
func runSandboxed(ctx context.Context, source string, entryPoint string) (string, error, ErrorClass) {
	sandboxCtx, cancel := context.WithTimeout(ctx, sandboxTimeout)
	defer cancel()

	type outcome struct {
		output string
		err    error
		class  ErrorClass
	}
	done := make(chan outcome, 1)

	go func() {
		i := interp.New(interp.Options{})
		if err := i.Use(stdlib.Symbols); err != nil {
			done <- outcome{err: fmt.Errorf("sandbox: load stdlib: %w", err), class: ErrorClassOther}
			return
		}
		if _, err := i.Eval(source); err != nil {
			done <- outcome{err: err, class: classify(err)}
			return
		}
		fn, err := i.Eval(entryPoint)
		if err != nil {
			done <- outcome{err: fmt.Errorf("entry point %s not found: %w", entryPoint, err), class: ErrorClassName}
			return
		}

		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r), class: classifyPanic(r)}
			}
		}()

		switch f := fn.Interface().(type) {
		case func() string:
			done <- outcome{output: f()}
		case func() (string, error):
			out, callErr := f()
			if callErr != nil {
				done <- outcome{err: callErr, class: classify(callErr), output: out}
				return
			}
			done <- outcome{output: out}
		default:
			done <- outcome{err: fmt.Errorf("entry point %s has unsupported signature", entryPoint), class: ErrorClassType}
		}
	}()

	select {
	case o := <-done:
		return o.output, o.err, o.class
	case <-sandboxCtx.Done():
		return "", fmt.Errorf("sandbox timed out after %s", sandboxTimeout), ErrorClassOther
	}
}

func classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassNone
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "undefined") || strings.Contains(msg, "not found") || strings.Contains(msg, "undeclared"):
		return ErrorClassName
	case strings.Contains(msg, "index out of range") || strings.Contains(msg, "slice bounds"):
		return ErrorClassIndex
	case strings.Contains(msg, "cannot use") || strings.Contains(msg, "type mismatch") || strings.Contains(msg, "invalid operation"):
		return ErrorClassType
	case strings.Contains(msg, "invalid argument") || strings.Contains(msg, "invalid value"):
		return ErrorClassValue
	default:
		return ErrorClassOther
	}
}

func classifyPanic(r interface{}) ErrorClass {
	msg := strings.ToLower(fmt.Sprintf("%v", r))
	switch {
	case strings.Contains(msg, "index out of range"):
		return ErrorClassIndex
	case strings.Contains(msg, "nil pointer") || strings.Contains(msg, "invalid memory address"):
		return ErrorClassValue
	case strings.Contains(msg, "interface conversion"):
		return ErrorClassType
	default:
		return ErrorClassOther
	}
}

// runtimeErrorScore maps an error class to the documented 10-30 band.
func runtimeErrorScore(class ErrorClass) int {
	switch class {
	case ErrorClassType:
		return 30
	case ErrorClassName:
		return 25
	case ErrorClassIndex:
		return 20
	case ErrorClassValue:
		return 15
	default:
		return 10
	}
}

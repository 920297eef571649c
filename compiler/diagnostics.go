package compiler

import "fmt"

// ErrorKind classifies a compile diagnostic.
type ErrorKind int

const (
	MalformedTree ErrorKind = iota
	DuplicateName
	UndefinedName
	TypeMismatch
	NoReturn
	InvalidVoidReturn
	InvalidValueReturn
	StateChangeInGlobalFunction
	FunctionArgumentMismatch
	ListNestingViolation
	OutOfMemory
	NonConstantGlobalInitializer
	EventSignatureMismatch
	UnknownEvent

	// Warnings
	DeadCode
)

var errorKindText = map[ErrorKind]string{
	MalformedTree:                "Malformed syntax tree",
	DuplicateName:                "Duplicate local variable name",
	UndefinedName:                "Name not defined within scope",
	TypeMismatch:                 "Type mismatch",
	NoReturn:                     "Not all code paths return a value",
	InvalidVoidReturn:            "Function returns a value but return statement doesn't",
	InvalidValueReturn:           "Return statement type doesn't match function return type",
	StateChangeInGlobalFunction:  "Global functions can't change state",
	FunctionArgumentMismatch:     "Function call mismatches type or number of arguments",
	ListNestingViolation:         "Lists can't include lists",
	OutOfMemory:                  "Script is too large",
	NonConstantGlobalInitializer: "Global initializer must be a constant",
	EventSignatureMismatch:       "Event handler parameters don't match the event",
	UnknownEvent:                 "Unknown event handler",
	DeadCode:                     "Dead code found beyond return statement",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindText[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// IsWarning reports whether diagnostics of this kind leave the compile usable.
func (k ErrorKind) IsWarning() bool {
	return k == DeadCode
}

// Severity distinguishes errors from warnings.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "WARN"
	}
	return "ERROR"
}

// Diagnostic is one reported problem.
type Diagnostic struct {
	Line     int
	Column   int
	Kind     ErrorKind
	Severity Severity
	Message  string
}

// String formats the diagnostic as "(line, col) : ERROR : text".
func (d Diagnostic) String() string {
	s := fmt.Sprintf("(%d, %d) : %s : %s", d.Line, d.Column, d.Severity, d.Kind)
	if d.Message != "" {
		s += ": " + d.Message
	}
	return s
}

// FailedError is returned by Compile when at least one error was reported.
type FailedError struct {
	Errors      int
	Diagnostics []Diagnostic
}

func (e *FailedError) Error() string {
	for _, d := range e.Diagnostics {
		if d.Severity == SeverityError {
			return fmt.Sprintf("compilation failed with %d error(s); first: %s", e.Errors, d)
		}
	}
	return fmt.Sprintf("compilation failed with %d error(s)", e.Errors)
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/memoracle/internal/harness"
	"github.com/roach88/memoracle/internal/oracle"
)

// LoadMode controls how errors are handled during suite loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadedSuite is a suite paired with its reference data.
type LoadedSuite struct {
	Suite     *harness.Suite
	Reference *oracle.Reference
}

// LoadError represents an error that occurred while loading suites.
type LoadError struct {
	Code    string
	Message string
	Path    string // file the error refers to, if any
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ExpandSuitePaths turns the command arguments into suite files.
// A directory argument contributes every *.yaml and *.yml file directly
// inside it, sorted by name.
func ExpandSuitePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: "path not found", Path: arg}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing path: %v", err), Path: arg}
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err), Path: arg}
		}
		var found []string
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		if len(found) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: "no suite files found", Path: arg}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

// LoadSuites loads suite files and the reference data they name.
// Reference files shared by several suites are loaded once.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors and returns the suites
// that loaded cleanly.
func LoadSuites(paths []string, mode LoadMode) ([]LoadedSuite, []error) {
	var (
		loaded []LoadedSuite
		errs   []error
		refs   = make(map[string]*oracle.Reference)
		names  = make(map[string]string)
	)

	for _, path := range paths {
		ls, err := loadSuite(path, refs)
		if err == nil {
			if prev, dup := names[ls.Suite.Name]; dup {
				err = &LoadError{
					Code:    ErrCodeSuiteInvalid,
					Message: fmt.Sprintf("suite name %q already used by %s", ls.Suite.Name, prev),
					Path:    path,
				}
			}
		}
		if err != nil {
			errs = append(errs, err)
			if mode == LoadModeFailFast {
				return nil, errs
			}
			continue
		}
		names[ls.Suite.Name] = path
		loaded = append(loaded, ls)
	}
	return loaded, errs
}

func loadSuite(path string, refs map[string]*oracle.Reference) (LoadedSuite, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return LoadedSuite{}, &LoadError{Code: ErrCodeNotFound, Message: "suite file not found", Path: path}
	}

	suite, err := harness.LoadSuite(path)
	if err != nil {
		return LoadedSuite{}, &LoadError{Code: ErrCodeSuiteInvalid, Message: err.Error(), Path: path}
	}

	ref, ok := refs[suite.Reference]
	if !ok {
		ref, err = LoadReference(suite.Reference)
		if err != nil {
			return LoadedSuite{}, err
		}
		refs[suite.Reference] = ref
	}

	if _, err := harness.NewPlan(suite, ref, ""); err != nil {
		return LoadedSuite{}, &LoadError{Code: ErrCodePlanInvalid, Message: err.Error(), Path: path}
	}
	return LoadedSuite{Suite: suite, Reference: ref}, nil
}

// LoadReference loads a CUE reference data file.
func LoadReference(path string) (*oracle.Reference, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "reference file not found", Path: path}
	}
	ref, err := oracle.LoadReference(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReferenceInvalid, Message: err.Error(), Path: path}
	}
	return ref, nil
}

// loadErrorCode extracts the error code of a load error.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No suite files found
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeWriteFailed = "E007" // File write error

	// Suite and reference errors
	ErrCodeSuiteInvalid     = "E101" // Suite YAML malformed or incomplete
	ErrCodeReferenceInvalid = "E102" // Reference CUE rejected by the schema
	ErrCodePlanInvalid      = "E103" // Suite does not resolve against its reference
	ErrCodeInvalidArgument  = "E104" // Bad flag or argument value

	// Run errors
	ErrCodeExecutor       = "E201" // Executor could not be set up
	ErrCodeRunFailed      = "E202" // Suite aborted before finishing
	ErrCodeLedger         = "E203" // Ledger read or write failed
	ErrCodeRunNotFound    = "E204" // Run id not in the ledger
	ErrCodeTrialsFailed   = "E_TRIALS_FAILED"
	ErrCodeGoldenMismatch = "E_GOLDEN_MISMATCH"
)

package languages

import (
	"fmt"
	"strings"

	"github.com/code-grade/worker/pkg/errors"
)

type LanguageType int

const (
	C LanguageType = iota + 1
	CPP
	Python
	Java
)

// SolutionClassName is the class a Java submission must declare. The class
// file is compiled and run under this exact name, so a submission that names
// its public class anything else fails to build. This is part of the
// submitter-facing contract, not an internal detail.
const SolutionClassName = "Solution"

var languageTypeMap = map[string]LanguageType{
	"c":      C,
	"cpp":    CPP,
	"python": Python,
	"java":   Java,
}

var languageExtensionMap = map[LanguageType]string{
	C:      ".c",
	CPP:    ".cpp",
	Python: ".py",
	Java:   ".java",
}

func (lt LanguageType) String() string {
	for key, value := range languageTypeMap {
		if value == lt {
			return key
		}
	}
	return ""
}

func ParseLanguageType(s string) (LanguageType, error) {
	if lt, ok := languageTypeMap[strings.ToLower(s)]; ok {
		return lt, nil
	}
	return 0, errors.ErrUnsupportedLanguage
}

func GetSupportedLanguages() []string {
	var languages []string
	for lang := range languageTypeMap {
		languages = append(languages, lang)
	}
	return languages
}

func (lt LanguageType) Extension() string {
	return languageExtensionMap[lt]
}

// Interpreted reports whether submissions in this language skip the build
// step entirely; the staged source file itself is the runnable artifact.
func (lt LanguageType) Interpreted() bool {
	return lt == Python
}

// DefaultImage returns the runtime image used when no override is configured.
func (lt LanguageType) DefaultImage() string {
	switch lt {
	case C, CPP:
		return "gcc:latest"
	case Python:
		return "python:3.11-slim"
	case Java:
		return "openjdk:17"
	default:
		return ""
	}
}

// SourceFileName returns the file name the submission is staged under.
// Java ignores the base name because the compiler requires the file to
// match SolutionClassName.
func (lt LanguageType) SourceFileName(base string) string {
	if lt == Java {
		return SolutionClassName + languageExtensionMap[Java]
	}
	return base + languageExtensionMap[lt]
}

// BuildScript returns the shell command executed inside the build sandbox.
// Paths are relative to the staging mount. The produced artifact is made
// world-executable because the run step mounts it under a different identity.
func (lt LanguageType) BuildScript(mountDir, sourceName, execName string) (string, error) {
	switch lt {
	case C:
		return fmt.Sprintf("gcc -o %s/%s %s/%s && chmod 755 %s/%s",
			mountDir, execName, mountDir, sourceName, mountDir, execName), nil
	case CPP:
		return fmt.Sprintf("g++ -o %s/%s %s/%s && chmod 755 %s/%s",
			mountDir, execName, mountDir, sourceName, mountDir, execName), nil
	case Java:
		return fmt.Sprintf("cd %s && javac %s && chmod 644 *.class", mountDir, sourceName), nil
	case Python:
		return "", nil
	default:
		return "", errors.ErrUnsupportedLanguage
	}
}

// RunScript returns the shell command that pipes the staged input file to
// the artifact's standard input inside the run sandbox. artifactName is the
// base name of the executable or source file under the /exec mount;
// inputName is the base name of the input file under the /input mount.
func (lt LanguageType) RunScript(artifactName, inputName string) (string, error) {
	switch lt {
	case C, CPP:
		return fmt.Sprintf("cat /input/%s | /exec/%s", inputName, artifactName), nil
	case Python:
		return fmt.Sprintf("python3 /exec/%s < /input/%s", artifactName, inputName), nil
	case Java:
		return fmt.Sprintf("cd /exec && java %s < /input/%s", SolutionClassName, inputName), nil
	default:
		return "", errors.ErrUnsupportedLanguage
	}
}

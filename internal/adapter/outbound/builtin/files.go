package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/TIMPICKLE/langchian0.3-call-MCP/internal/domain"
)

// Errors reported by the file tools.
var (
	ErrPathEscapesRoot     = errors.New("path escapes the work directory")
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
	ErrFileTooLarge        = errors.New("file exceeds the maximum size")
)

// FilePolicy confines read_file and write_file.
type FilePolicy struct {
	// Root is the work directory. Relative paths resolve against it.
	Root string
	// AllowedExtensions lists permitted extensions including the dot. Empty allows any.
	AllowedExtensions []string
	// MaxFileSize caps reads and writes in bytes. Zero disables the cap.
	MaxFileSize int64
}

// resolve maps a caller-supplied path to an absolute path inside Root.
func (p FilePolicy) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("path is empty")
	}
	root, err := filepath.Abs(p.Root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve work directory: %w", err)
	}
	target := filepath.FromSlash(path)
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, path)
	}

	if len(p.AllowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(target))
		if !slices.Contains(p.AllowedExtensions, ext) {
			return "", fmt.Errorf("%w: %q (allowed: %s)", ErrExtensionNotAllowed, ext, strings.Join(p.AllowedExtensions, ", "))
		}
	}
	return target, nil
}

func (p FilePolicy) checkSize(size int64) error {
	if p.MaxFileSize > 0 && size > p.MaxFileSize {
		return fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, size, p.MaxFileSize)
	}
	return nil
}

// ReadFileTool returns the contents of a UTF-8 text file.
func ReadFileTool(policy FilePolicy, clock Clock) domain.Executable {
	return domain.FuncTool{
		Definition: domain.Tool{
			Name:        "read_file",
			Description: "Read the contents of the specified file",
			InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
				"path": {Type: "string", Description: "Path of the file to read"},
			}, "path"),
		},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			path, err := stringArg(args, "path")
			if err != nil {
				return nil, err
			}
			target, err := policy.resolve(path)
			if err != nil {
				return nil, err
			}

			info, err := os.Stat(target)
			if err != nil {
				if os.IsNotExist(err) {
					return nil, fmt.Errorf("file does not exist: %s", path)
				}
				return nil, fmt.Errorf("failed to stat %s: %w", path, err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%s is a directory", path)
			}
			if err := policy.checkSize(info.Size()); err != nil {
				return nil, err
			}

			data, err := os.ReadFile(target)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			if !utf8.Valid(data) {
				return nil, fmt.Errorf("%s is not valid UTF-8 text", path)
			}

			return map[string]any{
				"operation": "read_file",
				"path":      path,
				"content":   string(data),
				"size":      len(data),
				"timestamp": clock.isoNow(),
			}, nil
		},
	}
}

// WriteFileTool writes text to a file, creating parent directories as needed.
// The write goes to a temp file that is renamed into place.
func WriteFileTool(policy FilePolicy, clock Clock) domain.Executable {
	return domain.FuncTool{
		Definition: domain.Tool{
			Name:        "write_file",
			Description: "Write content to the specified file",
			InputSchema: domain.ObjectSchema(map[string]domain.JSONSchemaProps{
				"path":    {Type: "string", Description: "Path of the file to write"},
				"content": {Type: "string", Description: "Content to write"},
			}, "path", "content"),
		},
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			path, err := stringArg(args, "path")
			if err != nil {
				return nil, err
			}
			content, err := stringArg(args, "content")
			if err != nil {
				return nil, err
			}
			target, err := policy.resolve(path)
			if err != nil {
				return nil, err
			}
			if err := policy.checkSize(int64(len(content))); err != nil {
				return nil, err
			}
			if err := writeAtomic(target, []byte(content)); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", path, err)
			}

			return map[string]any{
				"operation": "write_file",
				"path":      path,
				"size":      len(content),
				"timestamp": clock.isoNow(),
			}, nil
		},
	}
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func stringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", key, raw)
	}
	return s, nil
}

package cmd

import (
	"bytes"
	"fmt"
	"os"
	pathpkg "path/filepath"

	"github.com/spf13/cobra"
)

var findSignatureCmd = &cobra.Command{
	Use:   "find-signature <signature> <directory>",
	Short: "List files under a directory whose leading bytes match a signature",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, _ := cmd.Flags().GetBool("recursive")
		return runFindSignature(args[1], args[0], recursive)
	},
}

func init() {
	findSignatureCmd.Flags().BoolP("recursive", "r", true, "Recurse into subdirectories")
	rootCmd.AddCommand(findSignatureCmd)
}

// runFindSignature lists every file under dirPath whose first len(signature)
// bytes equal signature.
func runFindSignature(dirPath string, signature string, recursive bool) error {
	sigBytes := []byte(signature)
	sigLen := len(sigBytes)

	info, err := os.Stat(dirPath)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", dirPath)
	}

	var foundFiles []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: error accessing %s: %v\n", path, err)
			return nil
		}
		if info.IsDir() {
			if !recursive && path != dirPath {
				return pathpkg.SkipDir
			}
			return nil
		}
		if info.Size() < int64(sigLen) {
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot open %s: %v\n", path, err)
			return nil
		}
		defer file.Close()

		buf := make([]byte, sigLen)
		n, err := file.Read(buf)
		if err != nil || n < sigLen {
			return nil
		}
		if bytes.Equal(buf, sigBytes) {
			foundFiles = append(foundFiles, path)
		}
		return nil
	}

	if err := pathpkg.Walk(dirPath, walkFn); err != nil {
		return fmt.Errorf("error walking directory: %w", err)
	}

	for _, file := range foundFiles {
		fmt.Println(file)
	}
	return nil
}

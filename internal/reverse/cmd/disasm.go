package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"reverse/internal/analysis"
	"reverse/internal/analyzer"
	"reverse/internal/assembler"
	"reverse/internal/assembler/arm64"
	"reverse/internal/assembler/x86"
	"reverse/internal/elfx"
	"reverse/internal/engine"
	"reverse/internal/ui/colorize"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm <elf-file>",
	Short: "Disassemble an ELF binary and print its listing",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisasm,
}

func init() {
	disasmCmd.Flags().Int("cache-watermark", 0, "instruction cache eviction watermark (0 uses the default)")
	disasmCmd.Flags().Bool("blocks", false, "print computed basic blocks instead of the instruction listing")
	rootCmd.AddCommand(disasmCmd)
}

func runDisasm(cmd *cobra.Command, args []string) error {
	path := args[0]
	watermark, _ := cmd.Flags().GetInt("cache-watermark")
	showBlocks, _ := cmd.Flags().GetBool("blocks")

	img, err := elfx.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer img.Close()

	ld := elfx.NewImageLoader(img)

	asm, err := pickAssembler(ld.AssemblerID())
	if err != nil {
		return err
	}

	chain := analyzer.NewChain(&analysis.StringAnalyzer{Loader: ld})

	eng := engine.New(ld, asm, chain, watermark)
	eng.OnDecodeFailed = func(address uint64) {
		logger.Warnf("decode failed at %#x", address)
	}
	eng.OnProblem = func(text string) {
		logger.Warn(text)
	}

	eng.Disassemble(context.Background())

	if showBlocks {
		for _, b := range eng.ComputeBasicBlocks() {
			fmt.Printf("%x-%x\n", b.Start, b.End)
		}
		return nil
	}

	fmt.Print(colorize.FormatDocument(eng.Document()))
	return nil
}

func pickAssembler(id string) (assembler.Assembler, error) {
	switch id {
	case "x86":
		return x86.New32(), nil
	case "x86-64":
		return x86.New64(), nil
	case "arm64":
		return arm64.New(), nil
	default:
		return nil, fmt.Errorf("unsupported architecture: %q", id)
	}
}

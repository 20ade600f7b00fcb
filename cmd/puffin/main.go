// Copyright 2026 The Delta Generator Authors
// SPDX-License-Identifier: Apache-2.0

// The puffin tool transcodes gzip files of stored deflate blocks
// between their compressed form and the byte-aligned puff form used
// for delta generation.
//
//	puffin find input.gz --extents input.pfxt
//	puffin puff input.gz --extents input.pfxt --output input.puff
//	puffin huff input.puff --extents input.pfxt --output restored.gz
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/pflag"

	"github.com/xiaoxindada/delta-generator-build/lib/extentfile"
	"github.com/xiaoxindada/delta-generator-build/lib/puffin"
	"github.com/xiaoxindada/delta-generator-build/lib/storedcodec"
	"github.com/xiaoxindada/delta-generator-build/lib/stream"
	"github.com/xiaoxindada/delta-generator-build/lib/version"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		printUsage(out)
		return fmt.Errorf("subcommand required")
	}
	switch args[0] {
	case "find":
		return runFind(args[1:], out)
	case "puff":
		return runPuff(args[1:], out)
	case "huff":
		return runHuff(args[1:], out)
	case "version", "--version":
		fmt.Fprintf(out, "puffin %s\n", version.Info())
		return nil
	case "help", "--help", "-h":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `usage: puffin <command> [flags] <input>

Commands:
  find    locate stored deflate runs in a gzip file and write the
          extent table
  puff    expand a gzip file into its puff form using an extent table
  huff    reconstruct the original gzip file from its puff form
  version print version information

Run 'puffin <command> --help' for command flags.
`)
}

// transcodeChunkSize bounds memory while copying through a
// PuffinStream.
const transcodeChunkSize = 1 << 20

func runFind(args []string, out io.Writer) error {
	flagSet := pflag.NewFlagSet("find", pflag.ContinueOnError)
	extentsPath := flagSet.StringP("extents", "e", "", "extent table output path (required)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *extentsPath == "" {
		return fmt.Errorf("--extents is required")
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("find takes exactly one input file, got %d", flagSet.NArg())
	}
	inputPath := flagSet.Arg(0)

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}
	deflates, puffLengths, err := storedcodec.FindDeflates(data)
	if err != nil {
		return err
	}
	puffs, puffSize, err := puffin.FindPuffs(deflates, puffLengths, uint64(len(data)))
	if err != nil {
		return err
	}

	table := &extentfile.Table{PuffSize: puffSize, Deflates: deflates, Puffs: puffs}
	if err := extentfile.Save(*extentsPath, table); err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %d deflate runs, %d compressed bytes, %d puffed bytes\n",
		inputPath, len(deflates), len(data), puffSize)
	return nil
}

func runPuff(args []string, out io.Writer) error {
	flagSet := pflag.NewFlagSet("puff", pflag.ContinueOnError)
	extentsPath := flagSet.StringP("extents", "e", "", "extent table path (required)")
	outputPath := flagSet.StringP("output", "o", "", "puffed output path (required)")
	cacheSize := flagSet.Uint64("cache-size", 0, "transcoded-block cache size in bytes, 0 disables")
	verify := flagSet.Bool("verify", false, "huff the output back and compare with the input")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *extentsPath == "" || *outputPath == "" {
		return fmt.Errorf("--extents and --output are required")
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("puff takes exactly one input file, got %d", flagSet.NArg())
	}
	inputPath := flagSet.Arg(0)

	table, err := extentfile.Load(*extentsPath)
	if err != nil {
		return err
	}
	input, err := stream.Open(inputPath)
	if err != nil {
		return err
	}
	source, err := puffin.NewForPuff(input, storedcodec.Codec{},
		table.PuffSize, table.Deflates, table.Puffs, *cacheSize)
	if err != nil {
		input.Close()
		return err
	}
	defer source.Close()

	output, err := os.Create(*outputPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", *outputPath, err)
	}
	if err := copyPuffed(output, source, table.PuffSize); err != nil {
		output.Close()
		return err
	}
	if err := output.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", *outputPath, err)
	}

	if *verify {
		if err := verifyRoundTrip(inputPath, *outputPath, table); err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		fmt.Fprintf(out, "%s: verified against %s\n", *outputPath, inputPath)
	}
	fmt.Fprintf(out, "%s: %d puffed bytes written\n", *outputPath, table.PuffSize)
	return nil
}

func runHuff(args []string, out io.Writer) error {
	flagSet := pflag.NewFlagSet("huff", pflag.ContinueOnError)
	extentsPath := flagSet.StringP("extents", "e", "", "extent table path (required)")
	outputPath := flagSet.StringP("output", "o", "", "reconstructed output path (required)")
	verify := flagSet.Bool("verify", false, "decompress the reconstructed gzip file to check integrity")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *extentsPath == "" || *outputPath == "" {
		return fmt.Errorf("--extents and --output are required")
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("huff takes exactly one input file, got %d", flagSet.NArg())
	}
	inputPath := flagSet.Arg(0)

	table, err := extentfile.Load(*extentsPath)
	if err != nil {
		return err
	}
	input, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", inputPath, err)
	}
	defer input.Close()

	output, err := stream.Create(*outputPath)
	if err != nil {
		return err
	}
	sink, err := puffin.NewForHuff(output, storedcodec.Codec{},
		table.PuffSize, table.Deflates, table.Puffs)
	if err != nil {
		output.Close()
		return err
	}
	if err := copyHuffed(sink, input, table.PuffSize); err != nil {
		sink.Close()
		return err
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", *outputPath, err)
	}

	written, err := fileSize(*outputPath)
	if err != nil {
		return err
	}
	if *verify {
		if err := verifyGzip(*outputPath); err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		fmt.Fprintf(out, "%s: gzip integrity verified\n", *outputPath)
	}
	fmt.Fprintf(out, "%s: %d compressed bytes written\n", *outputPath, written)
	return nil
}

// copyPuffed drains a puff-direction stream into w in bounded chunks.
func copyPuffed(w io.Writer, source *puffin.PuffinStream, puffSize uint64) error {
	buffer := make([]byte, transcodeChunkSize)
	for offset := uint64(0); offset < puffSize; {
		n := min(uint64(len(buffer)), puffSize-offset)
		if err := source.Read(buffer[:n]); err != nil {
			return err
		}
		if _, err := w.Write(buffer[:n]); err != nil {
			return fmt.Errorf("writing puffed output: %w", err)
		}
		offset += n
	}
	return nil
}

// copyHuffed feeds r into a huff-direction stream in bounded chunks,
// requiring exactly puffSize bytes of input.
func copyHuffed(sink *puffin.PuffinStream, r io.Reader, puffSize uint64) error {
	buffer := make([]byte, transcodeChunkSize)
	for offset := uint64(0); offset < puffSize; {
		n := min(uint64(len(buffer)), puffSize-offset)
		if _, err := io.ReadFull(r, buffer[:n]); err != nil {
			return fmt.Errorf("reading puffed input: %w", err)
		}
		if err := sink.Write(buffer[:n]); err != nil {
			return err
		}
		offset += n
	}
	// Trailing bytes mean the extent table does not describe this file.
	var one [1]byte
	if _, err := r.Read(one[:]); err != io.EOF {
		return fmt.Errorf("puffed input longer than the %d bytes the extent table describes", puffSize)
	}
	return nil
}

// verifyRoundTrip huffs the puffed file back in memory and compares
// it with the original input.
func verifyRoundTrip(inputPath, puffedPath string, table *extentfile.Table) error {
	original, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputPath, err)
	}
	puffed, err := os.Open(puffedPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", puffedPath, err)
	}
	defer puffed.Close()

	reconstructed := stream.NewMemory(nil)
	sink, err := puffin.NewForHuff(reconstructed, storedcodec.Codec{},
		table.PuffSize, table.Deflates, table.Puffs)
	if err != nil {
		return err
	}
	if err := copyHuffed(sink, puffed, table.PuffSize); err != nil {
		return err
	}
	if !bytes.Equal(reconstructed.Bytes(), original) {
		return fmt.Errorf("huffed output differs from %s", inputPath)
	}
	return nil
}

// verifyGzip decompresses the file end to end, checking the gzip
// checksums along the way.
func verifyGzip(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("%s is not a valid gzip file: %w", path, err)
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("decompressing %s: %w", path, err)
	}
	return reader.Close()
}

func fileSize(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return uint64(info.Size()), nil
}

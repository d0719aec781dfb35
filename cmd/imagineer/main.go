// Command imagineer decodes a JPEG file and writes it out as a BMP, the
// round-trip used to validate the decoder against a real viewer.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexa-infra/go-imagineer"
	"github.com/alexa-infra/go-imagineer/bmp"
)

func main() {
	var out string
	var verbose bool
	var quiet bool
	flag.StringVar(&out, "o", "", "Output BMP file path (default: input path with .bmp extension)")
	flag.BoolVar(&verbose, "v", false, "Log every marker segment encountered")
	flag.BoolVar(&quiet, "quiet", false, "Suppress the dimensions/format summary line")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: imagineer [-o path] [-v] [-quiet] <jpeg-file>")
		os.Exit(1)
	}
	in := flag.Arg(0)

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if out == "" {
		ext := filepath.Ext(in)
		out = strings.TrimSuffix(in, ext) + ".bmp"
	}

	file, err := os.Open(in)
	if err != nil {
		fmt.Printf("cannot open %s: %s\n", in, err)
		return
	}
	defer file.Close()

	img, err := progjpeg.Decode(file, &progjpeg.Config{Logger: logger})
	if err != nil {
		fmt.Printf("cannot decode %s: %s\n", in, err)
		return
	}

	outFile, err := os.Create(out)
	if err != nil {
		logger.Error("cannot create output file", "path", out, "err", err)
		os.Exit(1)
	}
	defer outFile.Close()

	if err := bmp.Write(outFile, bmpFormat(img.Format()), img.Width(), img.Height(), img.Interleaved()); err != nil {
		logger.Error("cannot write bmp", "path", out, "err", err)
		os.Exit(1)
	}

	if !quiet {
		fmt.Printf("%s: %dx%d %s, sampling=%v -> %s\n", in, img.Width(), img.Height(), img.Format(), img.Sampling(), out)
	}
}

func bmpFormat(f progjpeg.Format) bmp.Format {
	switch f {
	case progjpeg.FormatGray:
		return bmp.L
	case progjpeg.FormatCMYK:
		return bmp.CMYK
	default:
		return bmp.YCbCr
	}
}

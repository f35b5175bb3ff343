// ===========================================================================
//
//                            PUBLIC DOMAIN NOTICE
//            National Center for Biotechnology Information (NCBI)
//
//  This software/database is a "United States Government Work" under the
//  terms of the United States Copyright Act. It was written as part of
//  the author's official duties as a United States Government employee and
//  thus cannot be copyrighted. This software/database is freely available
//  to the public for use. The National Library of Medicine and the U.S.
//  Government do not place any restriction on its use or reproduction.
//  We would, however, appreciate having the NCBI and the author cited in
//  any work or product based on this material.
//
//  Although all reasonable efforts have been taken to ensure the accuracy
//  and reliability of the software and data, the NLM and the U.S.
//  Government do not and cannot warrant the performance or results that
//  may be obtained by using this software or data. The NLM and the U.S.
//  Government disclaim all warranties, express or implied, including
//  warranties of performance, merchantability or fitness for any particular
//  purpose.
//
// ===========================================================================
//
// File Name:  nucsearch.go
//
// ==========================================================================

package main

import (
	"context"
	"fmt"
	"nucsearch/eutils"
	"os"
	"os/signal"
	"runtime/debug"
	"runtime/pprof"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

const nucsearchHelp = `
Nucsearch fetches one nucleotide record from NCBI E-utilities, or reads the
same XML from a local file, and writes every match of a regular expression
as CSV rows of sequence, start, and end (1-based, inclusive).

Record Selection

  -db         Entrez database [nucleotide]
  -id         Record identifier [30271926]
  -base       efetch URL [https://eutils.ncbi.nlm.nih.gov/entrez/eutils/efetch.fcgi]
  -input      Read XML from a local file instead ("-" for stdin, gzip accepted)

Search

  -pattern    Regular expression [AAAATAGCCCC]
  -upper      Convert sequence to upper case before searching
  -lower      Convert sequence to lower case before searching

Output

  -output     CSV file for matches [matches.csv]
                "-" writes rows to stdout and the summary to stderr
  -cache      Keep a copy of the downloaded XML
  -dir        Directory for the cached copy [.]

Configuration

  -config     YAML or TOML file with any of the keys
                base, db, id, pattern, input, output,
                cache, dir, fold, chunk, timeout
  -timeout    Seconds to wait for the server to respond [60]

Performance

  -chunk      Bytes per source chunk [65536]
  -chan       Depth of the chunk channel
  -proc       Number of processors

Debugging

  -debug      Show developer friendly error information
  -stats      Show processor and tuning values
  -timer      Report processing duration and rate
  -profile    Write CPU profile to cpu.pprof

Examples

  nucsearch -id 30271926 -pattern AAAATAGCCCC -output matches.csv

  nucsearch -id NC_045512.2 -pattern "TAA|TAG|TGA" -cache -dir /tmp

  nucsearch -input NC_045512.2.xml.gz -lower -pattern "gat+aca"

`

// MAIN FUNCTION

func main() {

	// skip past executable name
	args := os.Args[1:]

	// performance arguments
	numProcs := 0
	chanDepth := 0
	chunkSize := 0

	// configuration file, applied before any overriding flags
	configFile := ""

	// record selection and search values set on the command line
	flags := map[string]string{}
	doCache := false
	fold := ""
	timeout := -1

	// debugging
	dbug := false
	stts := false
	timr := false

	// profiling
	prfl := false

	for len(args) > 0 {

		switch args[0] {

		// documentation commands
		case "-version":
			fmt.Printf("%s\n", eutils.NSearchVersion)
			return
		case "-help", "help", "--help":
			fmt.Print(nucsearchHelp)
			return

		// performance tuning flags
		case "-proc":
			numProcs = eutils.GetNumericArg(args, "Number of processors", 0, 1, 1024)
			args = args[1:]
		case "-chan":
			chanDepth = eutils.GetNumericArg(args, "Communication channel depth", 0, 2, 128)
			args = args[1:]
		case "-chunk":
			chunkSize = eutils.GetNumericArg(args, "Chunk size", eutils.DefaultChunkSize, eutils.MinChunkSize, eutils.MaxChunkSize)
			args = args[1:]
		case "-timeout":
			timeout = eutils.GetNumericArg(args, "Timeout", 0, 1, 3600)
			args = args[1:]

		case "-config":
			configFile = eutils.GetStringArg(args, "Configuration file name")
			args = args[1:]

		// record selection, search, and output values
		case "-db", "-id", "-base", "-input", "-pattern", "-output", "-dir":
			flags[args[0]] = eutils.GetStringArg(args, args[0][1:]+" argument")
			args = args[1:]

		case "-cache":
			doCache = true
		case "-upper":
			fold = "upper"
		case "-lower":
			fold = "lower"

		// debugging flags
		case "-debug":
			dbug = true
		case "-stats", "-stat":
			stts = true
		case "-timer":
			timr = true
		case "-profile":
			prfl = true

		default:
			eutils.DisplayError("Unrecognized argument '%s'", args[0])
			os.Exit(1)
		}

		// skip past argument
		args = args[1:]
	}

	// report a failure, with the stack trace only when -debug is set
	fail := func(err error) {

		if dbug {
			fmt.Fprintf(os.Stderr, "\n%+v\n", err)
		} else {
			eutils.DisplayError("%s", err.Error())
			fmt.Fprintf(os.Stderr, "\nUse -debug for developer friendly information\n\n")
		}
		os.Exit(1)
	}

	// CONFIGURATION

	cfg := eutils.DefaultConfig()

	if configFile != "" {
		if err := eutils.LoadConfig(configFile, cfg); err != nil {
			fail(err)
		}
	}

	for key, val := range flags {
		switch key {
		case "-db":
			cfg.Database = val
		case "-id":
			cfg.Identifier = val
		case "-base":
			cfg.Base = val
		case "-input":
			cfg.Input = val
		case "-pattern":
			cfg.Pattern = val
		case "-output":
			cfg.Output = val
		case "-dir":
			cfg.CacheDir = val
		}
	}

	if doCache {
		cfg.Cache = true
	}
	if fold != "" {
		cfg.Fold = fold
	}
	if timeout >= 0 {
		cfg.Timeout = timeout
	}
	if chunkSize > 0 {
		cfg.ChunkSize = chunkSize
	}

	eutils.SetTunings(numProcs, chanDepth, cfg.ChunkSize)
	cfg.ChunkSize = eutils.ChunkSize()

	// -stats prints number of CPUs and performance tuning values
	if stts {
		eutils.PrintStats()
	}

	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	// compile once, before any input is read
	pat, err := eutils.CompilePattern(cfg.Pattern)
	if err != nil {
		fail(err)
	}

	// START PROFILING IF REQUESTED

	if prfl {

		f, err := os.Create("cpu.pprof")
		if err != nil {
			eutils.DisplayError("Unable to create profile output file")
			os.Exit(1)
		}

		pprof.StartCPUProfile(f)

		defer pprof.StopCPUProfile()
	}

	// interrupt stops the reader and removes the partial CSV
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	startTime := time.Now()

	res, err := eutils.Search(ctx, cfg, pat, nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			eutils.DisplayError("Interrupted")
			os.Exit(1)
		}
		pprof.StopCPUProfile()
		fail(err)
	}

	if err := eutils.PrintSummary(cfg.SummaryOutput(), res.Tally); err != nil {
		fail(errors.Wrap(err, "unable to print summary"))
	}

	if res.Tally.Len() > 0 {
		color.New(color.FgCyan).Fprintf(os.Stderr, "\n%s", eutils.SummaryFooter(res.Tally))
		if res.Record.Identifier != "" {
			fmt.Fprintf(os.Stderr, " of %s", res.Record.Identifier)
		}
		fmt.Fprintf(os.Stderr, "\n")
	}

	if res.CachePath != "" && res.CacheErr == nil {
		eutils.DisplayNotice("Cached %s", res.CachePath)
	}

	debug.FreeOSMemory()

	if timr {
		eutils.PrintDuration(startTime, "chunks", int(res.Chunks), res.Bytes)
	}
}

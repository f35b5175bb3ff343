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
// File Name:  utils.go
//
// ==========================================================================

package eutils

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/klauspost/cpuid"
	"github.com/pbnjay/memory"
)

// NSearchVersion is the current nucsearch release
const NSearchVersion = "1.2"

// performance tuning values, set once by SetTunings before any pipeline runs
var (
	numProcs  = 0
	chanDepth = 0
	chunkSize = DefaultChunkSize
)

// SetTunings adjusts the processor count, channel depth, and chunk size. Values of
// zero select defaults derived from the number of logical processors.
func SetTunings(nmProcs, chnDepth, chnkSize int) {

	ncpu := runtime.NumCPU()
	if ncpu < 1 {
		ncpu = 1
	}

	if nmProcs < 1 || nmProcs > ncpu {
		nmProcs = ncpu
	}
	numProcs = nmProcs

	// allow simultaneous threads for the reader and the consumer
	runtime.GOMAXPROCS(numProcs)

	if chnDepth < 1 {
		chnDepth = numProcs
	}
	chanDepth = min(max(chnDepth, 2), 128)

	if chnkSize < 1 {
		chnkSize = DefaultChunkSize
	}
	chunkSize = min(max(chnkSize, MinChunkSize), MaxChunkSize)

	// keep the worst case of buffered chunks under 1/64 of physical memory
	if total := memory.TotalMemory(); total > 0 {
		limit := total / 64
		for chunkSize > MinChunkSize && uint64(chunkSize*(chanDepth+1)) > limit {
			chunkSize /= 2
		}
	}
}

// ChanDepth returns the depth of the bounded chunk channel
func ChanDepth() int {

	if chanDepth < 1 {
		return 2
	}
	return chanDepth
}

// ChunkSize returns the number of bytes requested for each source chunk
func ChunkSize() int {

	if chunkSize < MinChunkSize {
		return DefaultChunkSize
	}
	return chunkSize
}

// PrintStats prints the number of CPUs and performance tuning values
func PrintStats() {

	ncpu := runtime.NumCPU()

	tpc := cpuid.CPU.ThreadsPerCore
	if tpc < 1 {
		tpc = 1
	}
	lgc := cpuid.CPU.LogicalCores
	if lgc < 1 {
		lgc = ncpu
	}

	fmt.Fprintf(os.Stderr, "Core %d\n", ncpu/tpc)
	fmt.Fprintf(os.Stderr, "Thrd %d\n", ncpu)
	fmt.Fprintf(os.Stderr, "Sock %d\n", max(ncpu/lgc, 1))
	fmt.Fprintf(os.Stderr, "Mmry %d\n", memory.TotalMemory()/(1024*1024*1024))
	if cpuid.CPU.BrandName != "" {
		fmt.Fprintf(os.Stderr, "Brnd %s\n", cpuid.CPU.BrandName)
	}

	fmt.Fprintf(os.Stderr, "Proc %d\n", numProcs)
	fmt.Fprintf(os.Stderr, "Chan %d\n", ChanDepth())
	fmt.Fprintf(os.Stderr, "Chnk %d\n", ChunkSize())
}

// PrintDuration prints the processing rate and program duration
func PrintDuration(startTime time.Time, name string, count int, byteCount int64) {

	stopTime := time.Now()
	duration := stopTime.Sub(startTime)
	seconds := float64(duration.Nanoseconds()) / 1e9

	fmt.Fprintf(os.Stderr, "\nNucsearch processed %d %s in %.3f seconds", count, name, seconds)

	if seconds >= 0.001 && count > 0 {
		rate := int(float64(count) / seconds)
		fmt.Fprintf(os.Stderr, " (%d %s/second", rate, name)
		if byteCount > 0 {
			rate := int(float64(byteCount) / seconds)
			if rate >= 1000000 {
				fmt.Fprintf(os.Stderr, ", %d megabytes/second", rate/1000000)
			} else if rate >= 1000 {
				fmt.Fprintf(os.Stderr, ", %d kilobytes/second", rate/1000)
			} else {
				fmt.Fprintf(os.Stderr, ", %d bytes/second", rate)
			}
		}
		fmt.Fprintf(os.Stderr, ")")
	}

	fmt.Fprintf(os.Stderr, "\n\n")
}

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	noticeColor  = color.New(color.FgGreen)
)

// DisplayError prints a red ERROR banner and message to stderr
func DisplayError(format string, params ...interface{}) {

	str := fmt.Sprintf(format, params...)
	errorColor.Fprintf(os.Stderr, "\n ERROR: ")
	fmt.Fprintf(os.Stderr, " %s\n", str)
}

// DisplayWarning prints a yellow WARNING banner and message to stderr
func DisplayWarning(format string, params ...interface{}) {

	str := fmt.Sprintf(format, params...)
	warningColor.Fprintf(os.Stderr, "\n WARNING: ")
	fmt.Fprintf(os.Stderr, " %s\n", str)
}

// DisplayNotice prints a green informational line to stderr
func DisplayNotice(format string, params ...interface{}) {

	str := fmt.Sprintf(format, params...)
	noticeColor.Fprintf(os.Stderr, "%s\n", str)
}

// GetNumericArg returns the integer following a command-line flag, clamped to the
// minimum and maximum. An argument value of 0 returns the zer default.
func GetNumericArg(args []string, name string, zer, min, max int) int {

	if len(args) < 2 {
		DisplayError("%s is missing", name)
		os.Exit(1)
	}
	value, err := strconv.Atoi(args[1])
	if err != nil {
		DisplayError("%s (%s) is not an integer", name, args[1])
		os.Exit(1)
	}

	// special case for argument value of 0
	if value < 1 {
		return zer
	}
	// limit value to between specified minimum and maximum
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// GetStringArg returns the string following a command-line flag
func GetStringArg(args []string, name string) string {

	if len(args) < 2 {
		DisplayError("%s is missing", name)
		os.Exit(1)
	}
	return args[1]
}

package system

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// GiB is 2^30 bytes.
const GiB uint64 = 1 << 30

// AvailableBytes reports free bytes on the filesystem holding path, read from
// `df -B1`.
func AvailableBytes(ctx context.Context, r Runner, path string) (uint64, error) {
	res, err := r.Run(ctx, "df", "-B1", path)
	if err != nil {
		return 0, fmt.Errorf("failed to query disk space for %s: %w", path, err)
	}
	return ParseDFAvailable(string(res.Stdout))
}

// ParseDFAvailable extracts the Available column from byte-denominated df
// output. The first data line is used.
func ParseDFAvailable(out string) (uint64, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("unexpected df output: %q", out)
	}

	fields := strings.Fields(lines[1])
	// Long device names make df wrap onto a continuation line.
	if len(fields) == 1 && len(lines) > 2 {
		fields = append(fields, strings.Fields(lines[2])...)
	}
	if len(fields) < 4 {
		return 0, fmt.Errorf("unexpected df line: %q", lines[1])
	}

	avail, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse available bytes %q: %w", fields[3], err)
	}
	return avail, nil
}

// RootFSType returns the filesystem type mounted at /.
func RootFSType(ctx context.Context, r Runner) (string, error) {
	return findmnt(ctx, r, "FSTYPE")
}

// RootSource returns the block device backing /.
func RootSource(ctx context.Context, r Runner) (string, error) {
	return findmnt(ctx, r, "SOURCE")
}

func findmnt(ctx context.Context, r Runner, column string) (string, error) {
	res, err := r.Run(ctx, "findmnt", "-n", "-o", column, "/")
	if err != nil {
		return "", fmt.Errorf("failed to read root %s: %w", strings.ToLower(column), err)
	}
	v := strings.TrimSpace(string(res.Stdout))
	if v == "" {
		return "", fmt.Errorf("findmnt returned no %s for /", strings.ToLower(column))
	}
	return v, nil
}

// DirSize reports the apparent size of path via `du -sb`.
func DirSize(ctx context.Context, r Runner, path string) (uint64, error) {
	res, err := r.Run(ctx, "du", "-sb", path)
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(res.Stdout))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty du output for %s", path)
	}
	return strconv.ParseUint(fields[0], 10, 64)
}

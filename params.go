package casc

import "strings"

// DefaultSeparator is the designated single character the parameter
// grammar splits on when a caller does not supply its own (§6.3). Real
// CascLib-derived tooling documents this per build; this engine defaults
// to '*' to match the PathProduct StorageInfo class's own separator
// (CascCommon.h's CASC_PATH_SEPARATOR comment).
const DefaultSeparator = '*'

// Params is the parsed or directly-constructed set of fields OpenStorage
// needs: a local storage directory and/or a CDN endpoint triple (§6.2).
type Params struct {
	LocalPath string
	CDNURL    string
	CodeName  string
	Region    string
	BuildKey  string // not part of the §6.3 grammar string; args-only
	Online    bool
}

// isURLLike implements the grammar's url predicate: first recognized by
// the presence of "://", or a '.', or a '/'.
func isURLLike(s string) bool {
	return strings.Contains(s, "://") || strings.Contains(s, ".") || strings.Contains(s, "/")
}

// ParseParams parses the "local_path[SEP url][SEP code_name[SEP region]]"
// grammar greedily left-to-right. A segment is accepted into the url slot
// only if it matches isURLLike; otherwise it is treated as the code name,
// per §6.3's fallback rule.
func ParseParams(s string, sep byte) (Params, error) {
	if sep == 0 {
		sep = DefaultSeparator
	}
	segments := strings.Split(s, string(sep))
	p := Params{LocalPath: segments[0]}
	rest := segments[1:]

	if len(rest) > 0 && isURLLike(rest[0]) {
		p.CDNURL = rest[0]
		p.Online = true
		rest = rest[1:]
	}
	if len(rest) > 0 {
		p.CodeName = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 {
		p.Region = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return Params{}, wrapErr("ParseParams", CodeInvalidParameter, ErrInvalidParameter)
	}
	return p, nil
}

// mergeArgs overlays args onto p, treating a non-empty field present in
// both as a collision per §6.3's "supplying the same field in both is an
// error" rule.
func mergeArgs(p Params, args Params) (Params, error) {
	merge := func(a, b *string) error {
		if *a != "" && *b != "" {
			return wrapErr("OpenStorage", CodeInvalidParameter, ErrInvalidParameter)
		}
		if *a == "" {
			*a = *b
		}
		return nil
	}
	if err := merge(&p.LocalPath, &args.LocalPath); err != nil {
		return Params{}, err
	}
	if err := merge(&p.CDNURL, &args.CDNURL); err != nil {
		return Params{}, err
	}
	if err := merge(&p.CodeName, &args.CodeName); err != nil {
		return Params{}, err
	}
	if err := merge(&p.Region, &args.Region); err != nil {
		return Params{}, err
	}
	if err := merge(&p.BuildKey, &args.BuildKey); err != nil {
		return Params{}, err
	}
	if args.Online {
		p.Online = true
	}
	return p, nil
}

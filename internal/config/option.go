package config

import (
	"fmt"
	"strings"
)

// Option is a single `key` or `key=value` entry of a directive or tag.
type Option struct {
	Key      string
	Value    string
	HasValue bool
}

func (o Option) String() string {
	if o.HasValue {
		return o.Key + "=" + o.Value
	}
	return o.Key
}

// Split breaks an option list on top-level commas. Commas nested in brackets,
// braces, parentheses or quoted literals belong to the value.
func Split(s string) ([]Option, error) {
	var (
		out   []Option
		depth []rune
		quote rune
		start int
	)

	flush := func(end int) error {
		raw := strings.TrimSpace(s[start:end])
		if raw == "" {
			return fmt.Errorf("empty option in %q", s)
		}
		opt := Option{Key: raw}
		if i := strings.IndexByte(raw, '='); i >= 0 {
			opt.Key = strings.TrimSpace(raw[:i])
			opt.Value = strings.TrimSpace(raw[i+1:])
			opt.HasValue = true
		}
		if !isKey(opt.Key) {
			return fmt.Errorf("malformed option %q", raw)
		}
		out = append(out, opt)
		return nil
	}

	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	for i := 0; i < len(s); i++ {
		c := rune(s[i])
		if quote != 0 {
			switch {
			case c == '\\' && quote != '`':
				i++
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(', '[', '{':
			depth = append(depth, closer(c))
		case ')', ']', '}':
			if len(depth) == 0 || depth[len(depth)-1] != c {
				return nil, fmt.Errorf("unbalanced %q in %q", c, s)
			}
			depth = depth[:len(depth)-1]
		case ',':
			if len(depth) == 0 {
				if err := flush(i); err != nil {
					return nil, err
				}
				start = i + 1
			}
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated literal in %q", s)
	}
	if len(depth) != 0 {
		return nil, fmt.Errorf("unbalanced brackets in %q", s)
	}
	if err := flush(len(s)); err != nil {
		return nil, err
	}
	return out, nil
}

func closer(c rune) rune {
	switch c {
	case '(':
		return ')'
	case '[':
		return ']'
	}
	return '}'
}

func isKey(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r == '_') {
			return false
		}
	}
	return true
}

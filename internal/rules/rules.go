// Package rules разбирает и исполняет строки правил валидации атрибутов.
//
// Формат — k=v токены через пробел или запятую, значения могут быть в
// кавычках, регэкспы — в [...] без экранирования пробелов:
//
//	min=0 max=99999
//	min_length=2, max_length=50
//	pattern='^[A-Z0-9 _-]+$' one_of='Coal,Iron Ore'
package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Rule struct {
	Name string
	Arg  string
}

type Set []Rule

var known = map[string]struct{}{
	"min": {}, "max": {}, "min_length": {}, "max_length": {},
	"pattern": {}, "one_of": {},
}

// Parse разбирает строку правил. Пустая строка — пустой набор.
func Parse(s string) (Set, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	// запятые считаем разделителями наравне с пробелами, но не внутри кавычек
	var out Set
	for _, tok := range splitRuleTokens(s) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		name := strings.ToLower(strings.TrimSpace(kv[0]))
		if _, ok := known[name]; !ok {
			return nil, fmt.Errorf("unknown rule %q", name)
		}
		if len(kv) != 2 {
			return nil, fmt.Errorf("rule %q requires an argument", name)
		}
		arg := strings.TrimSpace(kv[1])
		// снять кавычки, если есть
		if len(arg) >= 2 {
			if (arg[0] == '"' && arg[len(arg)-1] == '"') || (arg[0] == '\'' && arg[len(arg)-1] == '\'') {
				arg = arg[1 : len(arg)-1]
			}
		}
		if name == "pattern" {
			if _, err := regexp.Compile(arg); err != nil {
				return nil, fmt.Errorf("rule pattern: %v", err)
			}
		}
		out = append(out, Rule{Name: name, Arg: arg})
	}
	return out, nil
}

// splitRuleTokens делит строку на токены, не разрывая по пробелам внутри
// кавычек и [...] (регэксп с пробелом — обычное дело).
func splitRuleTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	bracketDepth := 0

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && bracketDepth == 0 {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle && bracketDepth == 0 {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '[':
			if !inSingle && !inDouble {
				bracketDepth++
			}
			buf = append(buf, r)
		case ']':
			if !inSingle && !inDouble && bracketDepth > 0 {
				bracketDepth--
			}
			buf = append(buf, r)
		default:
			if (r == ' ' || r == '\t' || r == ',') && !inSingle && !inDouble && bracketDepth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

// Validate прогоняет уже скоэрсированное значение через набор правил.
// Возвращает первую нарушенную проверку.
func (set Set) Validate(value any) error {
	if value == nil {
		return nil
	}
	for _, r := range set {
		if err := r.check(value); err != nil {
			return err
		}
	}
	return nil
}

func (r Rule) check(value any) error {
	switch r.Name {
	case "min", "max":
		limit, err := strconv.ParseFloat(r.Arg, 64)
		if err != nil {
			return fmt.Errorf("rule %s: bad argument %q", r.Name, r.Arg)
		}
		num, ok := asFloat(value)
		if !ok {
			return nil // не число — правило не применимо
		}
		if r.Name == "min" && num < limit {
			return fmt.Errorf("must be >= %s", r.Arg)
		}
		if r.Name == "max" && num > limit {
			return fmt.Errorf("must be <= %s", r.Arg)
		}
	case "min_length", "max_length":
		limit, err := strconv.Atoi(r.Arg)
		if err != nil {
			return fmt.Errorf("rule %s: bad argument %q", r.Name, r.Arg)
		}
		s, ok := value.(string)
		if !ok {
			return nil
		}
		n := len([]rune(s))
		if r.Name == "min_length" && n < limit {
			return fmt.Errorf("must be at least %d characters", limit)
		}
		if r.Name == "max_length" && n > limit {
			return fmt.Errorf("must be at most %d characters", limit)
		}
	case "pattern":
		s, ok := value.(string)
		if !ok {
			return nil
		}
		re, err := regexp.Compile(r.Arg)
		if err != nil {
			return fmt.Errorf("rule pattern: %v", err)
		}
		if !re.MatchString(s) {
			return fmt.Errorf("must match %s", r.Arg)
		}
	case "one_of":
		s := fmt.Sprintf("%v", value)
		for _, cand := range strings.Split(r.Arg, ",") {
			if strings.TrimSpace(cand) == s {
				return nil
			}
		}
		return fmt.Errorf("value %q is not allowed", s)
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}

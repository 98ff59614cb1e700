package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/forgo/surreal/pkg/values"
)

// Statement is the outcome of one statement in a query batch. A failing
// statement carries its own error and does not affect its siblings.
type Statement struct {
	Status string // "OK" or "ERR"
	Time   string
	Result values.Value
	Detail string // error text when Status == "ERR"
}

// StatementsValue renders a batch outcome in the wire shape: an array of
// {status, time, result} objects, where a failed statement's result is its
// error text.
func StatementsValue(stmts []Statement) values.Value {
	out := make([]values.Value, len(stmts))
	for i, st := range stmts {
		obj := values.NewObject()
		obj.InsertString("status", st.Status)
		obj.InsertString("time", st.Time)
		if st.Status == "OK" {
			obj.Insert("result", st.Result)
		} else {
			obj.InsertString("result", st.Detail)
		}
		out[i] = values.NewObjectValue(obj)
	}
	return values.NewArray(out)
}

// Query executes a batch of statements. The embedded engine understands a
// small fixed grammar:
//
//	RETURN <expr>
//	SELECT * FROM <target>
//	CREATE <target> [CONTENT <expr>]
//	UPDATE <target> CONTENT <expr>
//	DELETE <target>
//	LIVE SELECT * FROM <table>
//	KILL <expr>
//
// where <expr> is a literal (NONE, NULL, true, false, number, quoted
// string) or a $variable, and <target> is a table, a table:id reference, or
// a $variable holding one. Anything else fails that statement alone.
func (e *Engine) Query(sql string, vars *values.Object) []Statement {
	env := e.queryEnv(vars)
	var out []Statement
	for _, text := range splitStatements(sql) {
		start := time.Now()
		result, err := e.execStatement(text, env)
		st := Statement{Time: time.Since(start).String()}
		if err != nil {
			st.Status = "ERR"
			st.Detail = err.Error()
		} else {
			st.Status = "OK"
			st.Result = result
		}
		out = append(out, st)
	}
	return out
}

// queryEnv merges session variables with the caller's bindings; bindings
// win.
func (e *Engine) queryEnv(vars *values.Object) map[string]values.Value {
	env := make(map[string]values.Value)
	e.mu.Lock()
	for name, v := range e.vars {
		env[name] = v
	}
	e.mu.Unlock()
	if vars != nil {
		for _, k := range vars.Keys() {
			v, _ := vars.Get(k)
			env[k] = v
		}
	}
	return env
}

func (e *Engine) execStatement(text string, env map[string]values.Value) (values.Value, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return values.Value{}, failed("empty statement")
	}
	switch strings.ToUpper(fields[0]) {
	case "RETURN":
		if len(fields) < 2 {
			return values.Value{}, failed("RETURN requires an expression")
		}
		return evalExpr(strings.TrimSpace(text[len(fields[0]):]), env)

	case "SELECT":
		if len(fields) != 4 || fields[1] != "*" || !strings.EqualFold(fields[2], "FROM") {
			return values.Value{}, failed("SELECT supports only SELECT * FROM <target>")
		}
		target, err := evalTarget(fields[3], env)
		if err != nil {
			return values.Value{}, err
		}
		return e.Select(target)

	case "CREATE":
		switch len(fields) {
		case 2:
			target, err := evalTarget(fields[1], env)
			if err != nil {
				return values.Value{}, err
			}
			return e.Create(target, nil)
		case 4:
			if !strings.EqualFold(fields[2], "CONTENT") {
				return values.Value{}, failed("CREATE supports only CREATE <target> [CONTENT <expr>]")
			}
			target, err := evalTarget(fields[1], env)
			if err != nil {
				return values.Value{}, err
			}
			content, err := evalObject(fields[3], env)
			if err != nil {
				return values.Value{}, err
			}
			return e.Create(target, content)
		default:
			return values.Value{}, failed("CREATE supports only CREATE <target> [CONTENT <expr>]")
		}

	case "UPDATE":
		if len(fields) != 4 || !strings.EqualFold(fields[2], "CONTENT") {
			return values.Value{}, failed("UPDATE supports only UPDATE <target> CONTENT <expr>")
		}
		target, err := evalTarget(fields[1], env)
		if err != nil {
			return values.Value{}, err
		}
		content, err := evalObject(fields[3], env)
		if err != nil {
			return values.Value{}, err
		}
		return e.Update(target, content)

	case "DELETE":
		if len(fields) != 2 {
			return values.Value{}, failed("DELETE supports only DELETE <target>")
		}
		target, err := evalTarget(fields[1], env)
		if err != nil {
			return values.Value{}, err
		}
		return e.Delete(target)

	case "LIVE":
		if len(fields) != 5 || !strings.EqualFold(fields[1], "SELECT") ||
			fields[2] != "*" || !strings.EqualFold(fields[3], "FROM") {
			return values.Value{}, failed("LIVE supports only LIVE SELECT * FROM <table>")
		}
		target, err := evalTarget(fields[4], env)
		if err != nil {
			return values.Value{}, err
		}
		id, err := e.Live(target)
		if err != nil {
			return values.Value{}, err
		}
		return values.NewUUID(id), nil

	case "KILL":
		if len(fields) != 2 {
			return values.Value{}, failed("KILL requires a live query id")
		}
		v, err := evalExpr(fields[1], env)
		if err != nil {
			return values.Value{}, err
		}
		id, err := uuidArg(v)
		if err != nil {
			return values.Value{}, err
		}
		if err := e.Kill(id); err != nil {
			return values.Value{}, err
		}
		return values.NewNone(), nil

	case "BEGIN", "COMMIT", "CANCEL":
		return values.Value{}, failed("transactions are not supported by the embedded engine")

	default:
		return values.Value{}, failed("unsupported statement %q", fields[0])
	}
}

func uuidArg(v values.Value) (values.UUID, error) {
	if u, ok := v.UUID(); ok {
		return u, nil
	}
	if s, ok := v.Strand(); ok {
		u, err := values.ParseUUID(s)
		if err != nil {
			return values.UUID{}, failed("not a live query id: %v", err)
		}
		return u, nil
	}
	return values.UUID{}, failed("not a live query id: %s", v.Kind())
}

func evalTarget(token string, env map[string]values.Value) (string, error) {
	if strings.HasPrefix(token, "$") {
		v, ok := env[token[1:]]
		if !ok {
			return "", failed("unknown variable %s", token)
		}
		if s, ok := v.Strand(); ok {
			return s, nil
		}
		if t, ok := v.Thing(); ok {
			return t.String(), nil
		}
		return "", failed("variable %s is not a resource", token)
	}
	return token, nil
}

func evalObject(token string, env map[string]values.Value) (*values.Object, error) {
	v, err := evalExpr(token, env)
	if err != nil {
		return nil, err
	}
	if v.IsNone() || v.IsNull() {
		return nil, nil
	}
	obj, ok := v.Object()
	if !ok {
		return nil, failed("content must be an object, got %s", v.Kind())
	}
	return obj, nil
}

func evalExpr(expr string, env map[string]values.Value) (values.Value, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return values.Value{}, failed("empty expression")
	}
	if strings.HasPrefix(expr, "$") {
		v, ok := env[expr[1:]]
		if !ok {
			return values.Value{}, failed("unknown variable %s", expr)
		}
		return v, nil
	}
	switch strings.ToUpper(expr) {
	case "NONE":
		return values.NewNone(), nil
	case "NULL":
		return values.NewNull(), nil
	case "TRUE":
		return values.NewBool(true), nil
	case "FALSE":
		return values.NewBool(false), nil
	}
	if len(expr) >= 2 && (expr[0] == '"' || expr[0] == '\'') && expr[len(expr)-1] == expr[0] {
		return values.NewStrand(expr[1 : len(expr)-1]), nil
	}
	if i, err := strconv.ParseInt(expr, 10, 64); err == nil {
		return values.NewInt(i), nil
	}
	if f, err := strconv.ParseFloat(expr, 64); err == nil {
		return values.NewFloat(f), nil
	}
	return values.Value{}, failed("cannot evaluate expression %q", expr)
}

// splitStatements cuts a batch on semicolons, ignoring those inside quoted
// strings. Empty statements are skipped.
func splitStatements(sql string) []string {
	var out []string
	var sb strings.Builder
	var quote byte
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case quote != 0:
			sb.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
			sb.WriteByte(c)
		case c == ';':
			if s := strings.TrimSpace(sb.String()); s != "" {
				out = append(out, s)
			}
			sb.Reset()
		default:
			sb.WriteByte(c)
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		out = append(out, s)
	}
	return out
}

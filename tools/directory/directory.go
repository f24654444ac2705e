// Package directory provides the in-memory user directory and the
// `get_user_data` tool that filters it by minimum age.
package directory

import (
	"context"
	_ "embed"
	"encoding/json"
	"math"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auntie/pkg/llmutils"
	"github.com/effective-security/auntie/pkg/schema"
	"github.com/effective-security/auntie/tools"
	"github.com/effective-security/xlog"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/auntie/tools", "directory")

// ToolName is the name of the tool exposed to the model
const ToolName = "get_user_data"

//go:embed users.yaml
var seedYAML []byte

// User is a record in the directory
type User struct {
	Name string `json:"name" yaml:"name"`
	Age  int    `json:"age" yaml:"age"`
}

// Request is the tool input
type Request struct {
	MinAge int `json:"min_age" yaml:"min_age" jsonschema:"title=Minimum Age,description=Minimum age of the users to return\\, inclusive."`
}

// Response is the tool output
type Response struct {
	Users []User `json:"users" yaml:"users"`
}

// Directory is the read-only user table
type Directory struct {
	users []User
}

var defaultDirectory = mustLoadSeed()

func mustLoadSeed() *Directory {
	var users []User
	if err := yaml.Unmarshal(seedYAML, &users); err != nil {
		panic(errors.Wrap(err, "invalid users.yaml"))
	}
	return NewWithUsers(users)
}

// Default returns the directory with the embedded seed table
func Default() *Directory {
	return defaultDirectory
}

// NewWithUsers returns a directory over the given records,
// the order of the records is preserved.
func NewWithUsers(users []User) *Directory {
	return &Directory{users: users}
}

// GetUserData returns the records of the seed table with
// age greater or equal to minAge.
func GetUserData(minAge int) []User {
	return defaultDirectory.GetUserData(minAge)
}

// GetUserData returns the records with age greater or equal to minAge,
// in the directory order. The result is never nil.
func (d *Directory) GetUserData(minAge int) []User {
	res := make([]User, 0, len(d.users))
	for _, u := range d.users {
		if u.Age >= minAge {
			res = append(res, u)
		}
	}
	return res
}

// Tool exposes the directory to the model
type Tool struct {
	dir        *Directory
	funcParams any
}

var _ tools.Tool[Request, Response] = (*Tool)(nil)

// NewTool returns the `get_user_data` tool over the directory,
// or over the seed table if dir is nil.
func NewTool(dir *Directory) (*Tool, error) {
	if dir == nil {
		dir = defaultDirectory
	}
	sc, err := schema.New(reflect.TypeOf(Request{}))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create schema")
	}
	return &Tool{
		dir:        dir,
		funcParams: sc.Parameters,
	}, nil
}

func (t *Tool) Name() string {
	return ToolName
}

func (t *Tool) Description() string {
	return "Retrieve user data based on a minimum age."
}

func (t *Tool) Parameters() any {
	return t.funcParams
}

func (t *Tool) Run(_ context.Context, req *Request) (*Response, error) {
	return &Response{
		Users: t.dir.GetUserData(req.MinAge),
	}, nil
}

// Call accepts `{"min_age": 20}`, the value may also be
// a float or a numeric string. Thresholds above any age return `[]`.
func (t *Tool) Call(ctx context.Context, input string) (string, error) {
	var args map[string]any
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &args); err != nil {
		logger.ContextKV(ctx, xlog.DEBUG, "status", "invalid_input", "input", input, "err", err.Error())
		return "", errors.WithStack(tools.ErrFailedUnmarshalInput)
	}

	val, ok := args["min_age"]
	if !ok || val == nil {
		return "", errors.WithMessage(tools.ErrFailedUnmarshalInput, "min_age is required")
	}
	minAge, err := toMinAge(val)
	if err != nil {
		return "", err
	}

	res, err := t.Run(ctx, &Request{MinAge: minAge})
	if err != nil {
		return "", err
	}

	logger.ContextKV(ctx, xlog.DEBUG, "status", "found", "min_age", minAge, "count", len(res.Users))
	return llmutils.ToJSON(res.Users), nil
}

// toMinAge converts a JSON number or a numeric string to the threshold.
// Fractions round up, values beyond the int range are clamped.
func toMinAge(val any) (int, error) {
	if _, ok := val.(bool); ok {
		return 0, errors.WithMessagef(tools.ErrFailedUnmarshalInput, "min_age must be integer: %v", val)
	}
	f, err := cast.ToFloat64E(val)
	if err != nil || math.IsNaN(f) {
		return 0, errors.WithMessagef(tools.ErrFailedUnmarshalInput, "min_age must be integer: %v", val)
	}
	f = math.Ceil(f)
	switch {
	case f >= float64(math.MaxInt):
		return math.MaxInt, nil
	case f <= float64(math.MinInt):
		return math.MinInt, nil
	}
	return int(f), nil
}

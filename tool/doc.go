// Package tool provides the tool registry consumed by the agent loop and the
// builtin coding tools.
//
// A Registry is an explicit name-to-capability mapping. It is constructed by
// the caller and passed to the agent; there is no package-level registry.
//
// # Basic Usage
//
// Define tool arguments as a struct. The JSON schema is reflected from the
// struct: fields without omitempty are required, and descriptions come from
// jsonschema tags.
//
//	type WeatherArgs struct {
//	    Location string `json:"location" jsonschema:"description=City name"`
//	    Unit     string `json:"unit,omitempty" jsonschema:"enum=celsius,enum=fahrenheit"`
//	}
//
//	registry := tool.NewRegistry().Add(
//	    tool.Func("get_weather", "Get current weather",
//	        func(ctx context.Context, args WeatherArgs) (string, error) {
//	            return fmt.Sprintf("72 degrees in %s", args.Location), nil
//	        }),
//	)
//
// Arguments are validated against the schema before the handler runs.
//
// # Builtin Tools
//
// [Defaults] returns the coding tool set:
//
//   - shell: run a shell command in the working directory
//   - read: read one file
//   - readMany: read line windows from several files
//   - write: write a file, creating parent directories
//   - ls: list a directory to a given depth
//   - searchFiles: find files by name, honoring .gitignore
//   - grep: search file contents with a regular expression
//   - memory: append to or read .codison/memory.md
//
// [ProjectTools] adds getProjectInfo and getDependencies.
//
// Builtin tools report I/O problems (missing files, failed commands) as
// normal text output so the model can react to them. Only invalid arguments
// are returned as errors.
package tool

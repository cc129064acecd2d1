package publish

import (
	"path"
	"regexp"
	"strings"
)

// ModelName builds "<base model basename>-<adapter>[-<suffix>]".
func ModelName(baseModel, adapter, suffix string) string {
	name := path.Base(strings.TrimRight(baseModel, "/")) + "-" + adapter
	if suffix != "" {
		name += "-" + suffix
	}
	return name
}

// Naming derives artifact file names and hub repos for one run.
type Naming struct {
	BaseModel    string
	Adapter      string
	Production   string
	Quantization string
	Organization string
}

// IsProduction reports whether a production name was given.
func (n Naming) IsProduction() bool { return n.Production != "" }

func (n Naming) artifact(suffix string) string {
	if n.IsProduction() {
		return n.Production + "-" + suffix
	}
	return ModelName(n.BaseModel, n.Adapter, suffix)
}

// F16File is the unquantized GGUF file name.
func (n Naming) F16File() string { return n.artifact("f16") + ".gguf" }

// QuantFile is the quantized GGUF file name.
func (n Naming) QuantFile() string { return n.artifact(n.Quantization) + ".gguf" }

// GGUFRepoName is the GGUF repository name without organization.
func (n Naming) GGUFRepoName() string { return n.artifact("GGUF") }

// GGUFRepo is the full GGUF repository ID.
func (n Naming) GGUFRepo() string { return n.Organization + "/" + n.GGUFRepoName() }

// SafeTensorsRepo is the SafeTensors repository ID; production runs only.
func (n Naming) SafeTensorsRepo() string { return n.Organization + "/" + n.Production }

var shardPattern = regexp.MustCompile(`^model-(\d+-of-\d+)\.safetensors`)

// SafeTensorsName maps a merged-model weight file to its uploaded name:
// model-00001-of-00004.safetensors becomes <name>-00001-of-00004.safetensors
// and model.safetensors becomes <name>.safetensors. Other names are kept.
func SafeTensorsName(file, name string) string {
	if m := shardPattern.FindStringSubmatch(file); m != nil {
		return name + "-" + m[1] + ".safetensors"
	}
	if file == "model.safetensors" {
		return name + ".safetensors"
	}
	return file
}

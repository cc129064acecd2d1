package publish

import (
	"bytes"
	"text/template"
)

// CardData fills the model card templates.
type CardData struct {
	RepoName     string
	RepoID       string
	BaseModel    string
	Adapter      string
	Quantization string
	GGUFFile     string
}

var ggufCard = template.Must(template.New("gguf").Parse(`---
license: apache-2.0
base_model: {{.BaseModel}}
tags:
- gguf
- quantized
- {{.Quantization}}
---

# {{.RepoName}}

This is a GGUF quantized version ({{.Quantization}}) of {{.BaseModel}} fine-tuned with the '{{.Adapter}}' adapter.

## Model Details

- **Base Model:** {{.BaseModel}}
- **Adapter:** {{.Adapter}}
- **Quantization:** {{.Quantization}}
- **Format:** GGUF

## Usage

This model can be used with llama.cpp or any compatible inference engine that supports GGUF format.

` + "```bash" + `
# Example with llama.cpp
./llama-cli -m {{.GGUFFile}} -p "Your prompt here"
` + "```" + `

## Files

- ` + "`{{.GGUFFile}}`" + ` - Quantized model in GGUF format ({{.Quantization}})
`))

var safetensorsCard = template.Must(template.New("safetensors").Parse(`---
license: apache-2.0
base_model: {{.BaseModel}}
tags:
- safetensors
- text-generation
---

# {{.RepoName}}

This is a fine-tuned version of {{.BaseModel}} using the '{{.Adapter}}' adapter.

## Model Details

- **Base Model:** {{.BaseModel}}
- **Adapter:** {{.Adapter}}
- **Format:** SafeTensors

## Usage

This model can be used with transformers library:

` + "```python" + `
from transformers import AutoModelForCausalLM, AutoTokenizer

model = AutoModelForCausalLM.from_pretrained("{{.RepoID}}")
tokenizer = AutoTokenizer.from_pretrained("{{.RepoID}}")

inputs = tokenizer("Your prompt here", return_tensors="pt")
outputs = model.generate(**inputs)
print(tokenizer.decode(outputs[0]))
` + "```" + `
`))

// GGUFCard renders the model card for a GGUF repository.
func GGUFCard(d CardData) (string, error) { return render(ggufCard, d) }

// SafeTensorsCard renders the model card for a SafeTensors repository.
func SafeTensorsCard(d CardData) (string, error) { return render(safetensorsCard, d) }

func render(t *template.Template, d CardData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}

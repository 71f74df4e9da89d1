// Package shaders translates WGSL sources into the shading languages consumed by the renderer backends.
package shaders

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/glsl"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/msl"
)

// Target is the output language of a translation.
type Target int

const (
	TargetWGSL Target = iota
	TargetGLSL
	TargetGLSLES
	TargetHLSL
	TargetMSL
)

func (t Target) String() string {
	switch t {
	case TargetWGSL:
		return "wgsl"
	case TargetGLSL:
		return "glsl"
	case TargetGLSLES:
		return "glsl_es"
	case TargetHLSL:
		return "hlsl"
	case TargetMSL:
		return "msl"
	default:
		return "unknown"
	}
}

// ErrUnknownTarget is returned for a Target outside the defined constants.
var ErrUnknownTarget = errors.New("unknown shader target")

// Output is a translated vertex + pixel program pair.
type Output struct {
	VertexShader         []byte
	PixelShader          []byte
	VertexShaderFunction string
	PixelShaderFunction  string
}

// glsl writers emit explicit binding qualifiers that GL 3.3 core does not accept on default-block uniforms
var bindingQualifier = regexp.MustCompile(`layout\(binding = \d+\) `)

// Translate converts a WGSL module holding a vertex and a fragment entry point into the target language.
//
// Parameters:
//   - source: the WGSL source
//   - target: the output language
//   - vertexEntry: the name of the vertex entry point
//   - pixelEntry: the name of the fragment entry point
//
// Returns:
//   - Output: the translated stages and the entry point names to use in them
//   - error: error if the source does not parse or a stage cannot be generated
func Translate(source string, target Target, vertexEntry, pixelEntry string) (Output, error) {
	if target == TargetWGSL {
		return Output{
			VertexShader:         []byte(source),
			PixelShader:          []byte(source),
			VertexShaderFunction: vertexEntry,
			PixelShaderFunction:  pixelEntry,
		}, nil
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return Output{}, fmt.Errorf("failed to parse wgsl: %w", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return Output{}, fmt.Errorf("failed to lower wgsl: %w", err)
	}

	switch target {
	case TargetGLSL, TargetGLSLES:
		version := glsl.Version330
		if target == TargetGLSLES {
			version = glsl.VersionES300
		}
		vs, err := compileGLSL(module, version, vertexEntry)
		if err != nil {
			return Output{}, err
		}
		ps, err := compileGLSL(module, version, pixelEntry)
		if err != nil {
			return Output{}, err
		}
		// GLSL stages always enter through main
		return Output{VertexShader: vs, PixelShader: ps, VertexShaderFunction: "main", PixelShaderFunction: "main"}, nil

	case TargetHLSL:
		vs, vsName, err := compileHLSL(module, vertexEntry)
		if err != nil {
			return Output{}, err
		}
		ps, psName, err := compileHLSL(module, pixelEntry)
		if err != nil {
			return Output{}, err
		}
		return Output{VertexShader: vs, PixelShader: ps, VertexShaderFunction: vsName, PixelShaderFunction: psName}, nil

	case TargetMSL:
		src, info, err := msl.Compile(module, msl.DefaultOptions())
		if err != nil {
			return Output{}, fmt.Errorf("failed to generate msl: %w", err)
		}
		return Output{
			VertexShader:         []byte(src),
			PixelShader:          []byte(src),
			VertexShaderFunction: entryName(info.EntryPointNames, vertexEntry),
			PixelShaderFunction:  entryName(info.EntryPointNames, pixelEntry),
		}, nil
	}

	return Output{}, fmt.Errorf("target %d: %w", target, ErrUnknownTarget)
}

func compileGLSL(module *ir.Module, version glsl.Version, entry string) ([]byte, error) {
	src, _, err := glsl.Compile(module, glsl.Options{
		LangVersion:        version,
		EntryPoint:         entry,
		ForceHighPrecision: version.ES,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate glsl for %q: %w", entry, err)
	}
	return []byte(bindingQualifier.ReplaceAllString(src, "")), nil
}

func compileHLSL(module *ir.Module, entry string) ([]byte, string, error) {
	opts := hlsl.DefaultOptions()
	opts.EntryPoint = entry
	src, info, err := hlsl.Compile(module, opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate hlsl for %q: %w", entry, err)
	}
	name := entry
	if info != nil {
		name = entryName(info.EntryPointNames, entry)
	}
	return []byte(src), name, nil
}

func entryName(names map[string]string, entry string) string {
	if n, ok := names[entry]; ok && n != "" {
		return n
	}
	return entry
}

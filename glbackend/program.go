package glbackend

import (
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	gst "github.com/richinsley/goshadertranslator"

	"github.com/richinsley/goshadergraph/graphics"
	"github.com/richinsley/goshadergraph/logger"
)

// Program is a linked GL program.
type Program struct {
	id uint32
	// mapped holds the names the translator gave to source uniforms.
	mapped    map[string]string
	locations map[string]int32
}

func (p *Program) Release() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}

// location returns the uniform location of a source name, or -1 when the
// program does not use it.
func (p *Program) location(name string) int32 {
	if loc, ok := p.locations[name]; ok {
		return loc
	}
	glName := name
	if m, ok := p.mapped[name]; ok {
		glName = m
	}
	loc := gl.GetUniformLocation(p.id, gl.Str(glName+"\x00"))
	p.locations[name] = loc
	return loc
}

func (b *Backend) Compile(vertex, fragment string) (graphics.Program, error) {
	var mapped map[string]string
	if b.opts.Translate {
		out, err := b.opts.Translator.TranslateShader(fragment, "fragment", gst.ShaderSpecWebGL2, gst.OutputFormatGLSL410)
		if err != nil {
			return nil, &graphics.CompileError{Stage: graphics.StageFragment, Message: err.Error()}
		}
		fragment = out.Code
		mapped = make(map[string]string, len(out.Variables))
		for name, v := range out.Variables {
			mapped[name] = v.MappedName
		}
	}

	id, err := newProgram(vertex, fragment)
	if err != nil {
		return nil, err
	}
	logger.Logger().Debug("gl program linked", "id", id)
	return &Program{id: id, mapped: mapped, locations: make(map[string]int32)}, nil
}

func newProgram(vertexShaderSource, fragmentShaderSource string) (uint32, error) {
	vertexShader, err := compileShader(vertexShaderSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vertexShader)
	fragmentShader, err := compileShader(fragmentShaderSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fragmentShader)

	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.BindAttribLocation(program, 0, gl.Str("position\x00"))
	gl.BindAttribLocation(program, 1, gl.Str("tex_coords\x00"))
	gl.LinkProgram(program)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, &graphics.CompileError{Stage: graphics.StageLink, Message: strings.TrimRight(log, "\x00")}
	}
	return program, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(logText))
		gl.DeleteShader(shader)
		stage := graphics.StageFragment
		if shaderType == gl.VERTEX_SHADER {
			stage = graphics.StageVertex
		}
		return 0, &graphics.CompileError{Stage: stage, Message: strings.TrimRight(logText, "\x00")}
	}
	return shader, nil
}

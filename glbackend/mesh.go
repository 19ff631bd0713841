package glbackend

import (
	"errors"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/richinsley/goshadergraph/graphics"
)

// Mesh is a vertex array with its vertex and index buffers. Attribute 0 is
// the position and attribute 1 the texture coordinate.
type Mesh struct {
	vao, vbo, ebo uint32
	count         int
}

func (m *Mesh) Release() {
	if m.vao == 0 {
		return
	}
	gl.DeleteBuffers(1, &m.ebo)
	gl.DeleteBuffers(1, &m.vbo)
	gl.DeleteVertexArrays(1, &m.vao)
	m.vao, m.vbo, m.ebo = 0, 0, 0
}

func (b *Backend) NewMesh(vertices []graphics.Vertex, indices []uint16, _ graphics.Topology) (graphics.Mesh, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, errors.New("glbackend: empty mesh")
	}
	m := &Mesh{count: len(indices)}
	stride := int32(unsafe.Sizeof(graphics.Vertex{}))

	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)

	gl.GenBuffers(1, &m.vbo)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*int(stride), gl.Ptr(vertices), gl.STATIC_DRAW)

	gl.GenBuffers(1, &m.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*2, gl.Ptr(indices), gl.STATIC_DRAW)

	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 2, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(1, 2, gl.FLOAT, false, stride, unsafe.Offsetof(graphics.Vertex{}.TexCoord))

	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return m, nil
}

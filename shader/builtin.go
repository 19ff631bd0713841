package shader

// DefaultVertex is used by filters that list no vertex fragments. It passes
// the quad through and hands the texture coordinate to the fragment stage.
const DefaultVertex = `#version 410 core
layout (location = 0) in vec2 position;
layout (location = 1) in vec2 tex_coords;
uniform mat4 matrix;
out vec2 uv;
void main() {
    uv = tex_coords;
    gl_Position = matrix * vec4(position, 0.0, 1.0);
}
`

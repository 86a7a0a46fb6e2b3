// Command internexd is a demo/integration binary that wires urlcodec,
// csp, css, htmlrewrite, and jsrewrite into a working forwarding proxy
// using the /proxy?url= scheme.
package main

func main() {
	Execute()
}

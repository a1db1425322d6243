// Package integrationtests drives whole builds through the app layer against
// a fake toolchain.
package integrationtests

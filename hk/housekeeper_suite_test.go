package hk_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestHousekeeperSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "hk suite")
}

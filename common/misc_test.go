package common_test

import (
	"docflow/common"
	"os"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("NextId", func() {
	It("should generate increasing ids", func() {
		worker := common.NewIDWorker()
		Expect(worker).ToNot(BeNil())
		first := common.NextId(worker)
		second := common.NextId(worker)
		Expect(uint64(first)).To(BeNumerically(">", 0))
		Expect(uint64(second)).To(BeNumerically(">", uint64(first)))
	})
})

var _ = Describe("GetServiceName", func() {
	It("should prefer SERVICE_NAME", func() {
		Expect(os.Setenv("SERVICE_NAME", "approval")).To(Succeed())
		defer os.Unsetenv("SERVICE_NAME")
		Expect(common.GetServiceName()).To(Equal("approval"))
	})

	It("should fallback to docflow", func() {
		Expect(os.Unsetenv("SERVICE_NAME")).To(Succeed())
		Expect(common.GetServiceName()).To(Equal("docflow"))
	})
})

package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plcforge/plcsim/internal/bridge/opcua"
	"github.com/plcforge/plcsim/internal/tag"
)

// NodeDoc is the JSON rendering of one address-space node.
type NodeDoc struct {
	ID          string   `json:"id"`
	BrowseName  string   `json:"browse_name"`
	NodeClass   string   `json:"node_class"`
	Children    []string `json:"children,omitempty"`
	VariantType string   `json:"variant_type,omitempty"`
	Value       any      `json:"value,omitempty"`
	Writable    *bool    `json:"writable,omitempty"`
}

func describeNode(n *opcua.Node) NodeDoc {
	doc := NodeDoc{
		ID:         n.ID(),
		BrowseName: n.BrowseName(),
		NodeClass:  string(n.Class()),
	}
	for _, child := range n.Children() {
		doc.Children = append(doc.Children, child.ID())
	}
	if v := n.Variable(); v != nil {
		writable := v.Writable()
		doc.VariantType = string(v.VariantType())
		doc.Value = v.Value().Native()
		doc.Writable = &writable
	}
	return doc
}

// GET /api/v1/nodes
func (s *Server) browseRoot(c *gin.Context) {
	c.JSON(http.StatusOK, describeNode(s.space.Root()))
}

// GET /api/v1/nodes/:id
func (s *Server) getNode(c *gin.Context) {
	id := c.Param("id")
	node, ok := s.space.Node(id)
	if !ok {
		c.JSON(http.StatusNotFound, NewErrorResponse("NODE_404", "Unknown node id", id))
		return
	}
	c.JSON(http.StatusOK, describeNode(node))
}

// PUT /api/v1/nodes/:id/value
//
// Writes land on the variable node only; the bound tag picks the value up
// at the controller's next input scan.
func (s *Server) writeNodeValue(c *gin.Context) {
	id := c.Param("id")
	node, ok := s.space.Node(id)
	if !ok {
		c.JSON(http.StatusNotFound, NewErrorResponse("NODE_404", "Unknown node id", id))
		return
	}
	variable := node.Variable()
	if variable == nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("NODE_400", "Node is not a variable", id))
		return
	}

	var req struct {
		Value any `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("NODE_400", "Invalid request body", err.Error()))
		return
	}

	value, err := tag.FromNative(variable.DataType(), req.Value)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse("NODE_400", "Value does not match node type", err.Error()))
		return
	}

	if err := variable.SetExternal(value); err != nil {
		c.JSON(http.StatusForbidden, NewErrorResponse("NODE_403", "Write rejected", err.Error()))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Value staged for next input scan",
		"node_id": id,
	})
}

package order

// CanTransition says whether an operator-driven status update from one
// status to another is legal. Non-terminal orders may move to any other
// status. Terminal orders are frozen, except that a cancelled or delivered
// order may still be marked REFUNDED; refund settlement itself happens
// outside this engine, so REFUNDED is a terminal bookkeeping state.
func CanTransition(from, to OrderStatus) bool {
	if from == to || !to.Valid() {
		return false
	}
	if !from.Terminal() {
		return true
	}
	return to == StatusRefunded && (from == StatusCancelled || from == StatusDelivered)
}

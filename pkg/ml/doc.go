/*
Package ml provides the small statistical models behind Burrow's resource
predictor. They have no dependency on the scheduler and can be used on their
own.

  - OnlineRegressor: linear regression trained one observation at a time with
    stochastic gradient descent. Inputs are z-score normalized with running
    (Welford) statistics, the target is standardized the same way, weights
    carry L2 regularization and the learning rate decays as
    lr0 / (1 + decay*n). State and RegressorFromState convert to and from the
    persisted types.ModelState.
  - RunningStats: Welford mean/variance accumulator.
  - MovingAverage: fixed-window simple moving average.
  - DecisionTree: CART regression tree, used to benchmark the linear model
    during batch retraining.

None of the types are safe for concurrent use; callers serialize access.
*/
package ml
